package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dutchcoders/go-clamd"
)

// Scanner 在图片写入存储之前检查其内容。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 命令扫描数据流。
type ClamdScanner struct {
	addr string
}

// NewScanner 返回 clamd 扫描器；addr 为空时返回 NopScanner。
func NewScanner(addr string) Scanner {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return NopScanner{}
	}
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("clamd scan stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrInfected, result.Description)
			default:
				return fmt.Errorf("clamd: %s %s", result.Status, result.Description)
			}
		}
	}
}

// NopScanner 不做任何检查，用于未配置 clamd 的环境。
type NopScanner struct{}

func (NopScanner) Scan(context.Context, io.Reader) error { return nil }
