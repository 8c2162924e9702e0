package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/auth"
	"github.com/Lordevs/legacyverse-backend/internal/config"
	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/logging"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

func main() {
	var (
		email    = flag.String("email", "", "初始管理员邮箱（必填）")
		fullname = flag.String("fullname", "", "初始管理员姓名（必填，用于生成用户名）")
		dbHost   = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName   = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser   = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass   = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode  = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	logger := logging.MustNew("info", "console")
	defer func() { _ = logger.Sync() }()

	e := strings.ToLower(strings.TrimSpace(*email))
	name := strings.TrimSpace(*fullname)
	if e == "" || name == "" {
		logger.Fatal("missing required flags: --email and --fullname")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		logger.Fatal("load database config", zap.Error(err))
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	password, err := auth.RandomPassword(24)
	if err != nil {
		logger.Fatal("generate password", zap.Error(err))
	}

	user, err := createSuperuser(context.Background(), db, e, name, password)
	if err != nil {
		logger.Fatal("create superuser", zap.Error(err))
	}

	fmt.Printf("已创建初始管理员账号（首次登录需强制改密）：\n")
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("用户名: %s\n", user.Username)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：请立即登录并修改密码（该密码仅显示一次）。\n")
}

// createSuperuser 创建启用、已验证、需要改密的超级管理员，并初始化其 profile。
func createSuperuser(ctx context.Context, db *gorm.DB, email, fullname, password string) (*database.User, error) {
	var existing database.User
	switch err := db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; {
	case err == nil:
		return nil, fmt.Errorf("user %q already exists", email)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("query user: %w", err)
	}

	username, err := auth.GenerateUsername(fullname, func(candidate string) (bool, error) {
		var count int64
		err := db.WithContext(ctx).Model(&database.User{}).Where("username = ?", candidate).Count(&count).Error
		return count > 0, err
	})
	if err != nil {
		return nil, fmt.Errorf("generate username: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := database.User{
		Email:              email,
		Fullname:           fullname,
		Username:           username,
		PasswordHash:       hashed,
		IsVerified:         true,
		IsStaff:            true,
		IsSuperuser:        true,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	repo := profile.NewRepository(db)
	if _, err := repo.GetOrCreate(ctx, user.ID, func() []database.Section {
		return profile.DefaultSections(time.Now())
	}); err != nil {
		return nil, fmt.Errorf("bootstrap profile: %w", err)
	}
	return &user, nil
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("DB_NAME")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("DB_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
