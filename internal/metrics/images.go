package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image kinds used as the "kind" label.
const (
	ImageKindSection = "section"
	ImageKindProfile = "profile"
	ImageKindDisplay = "display"
)

var (
	imagesStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legacyverse",
			Subsystem: "images",
			Name:      "stored_total",
			Help:      "写入对象存储的图片数量。",
		},
		[]string{"kind"},
	)

	imagesDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legacyverse",
			Subsystem: "images",
			Name:      "deleted_total",
			Help:      "从对象存储删除的图片数量。",
		},
		[]string{"kind"},
	)

	imageDeleteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legacyverse",
			Subsystem: "images",
			Name:      "delete_failures_total",
			Help:      "删除对象失败次数（元数据行保留）。",
		},
		[]string{"kind"},
	)

	imagesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legacyverse",
			Subsystem: "images",
			Name:      "rejected_total",
			Help:      "上传时被拒绝的图片数量。",
		},
		[]string{"reason"},
	)
)

func ImageStored(kind string)       { imagesStoredTotal.WithLabelValues(kind).Inc() }
func ImageDeleted(kind string)      { imagesDeletedTotal.WithLabelValues(kind).Inc() }
func ImageDeleteFailed(kind string) { imageDeleteFailuresTotal.WithLabelValues(kind).Inc() }
func ImageRejected(reason string)   { imagesRejectedTotal.WithLabelValues(reason).Inc() }
