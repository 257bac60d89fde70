package services

import (
	"testing"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/document"
	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/stretchr/testify/assert"
)

// TestEstimateStages 测试按耗时比例切换阶段标签
func TestEstimateStages(t *testing.T) {
	estimator := NewProgressEstimator()
	// 50MB的txt文件：预估总时长 50 × 1.0 = 50秒
	const fileSize = 50 * 1024 * 1024

	t.Run("early elapsed is extracting", func(t *testing.T) {
		// 已耗时5秒，占10%，低于30%阈值
		progress := estimator.Estimate(fileSize, document.FileTypeTXT, time.Now().Add(-5*time.Second))
		assert.Equal(t, models.StageExtracting, progress.Stage)
		assert.Less(t, progress.Progress, 30)
	})

	t.Run("middle elapsed is chunking", func(t *testing.T) {
		// 已耗时22秒，占44%，位于30%-60%之间
		progress := estimator.Estimate(fileSize, document.FileTypeTXT, time.Now().Add(-22*time.Second))
		assert.Equal(t, models.StageChunking, progress.Stage)
	})

	t.Run("late elapsed is analyzing", func(t *testing.T) {
		// 已耗时40秒，占80%，超过60%阈值
		progress := estimator.Estimate(fileSize, document.FileTypeTXT, time.Now().Add(-40*time.Second))
		assert.Equal(t, models.StageAnalyzing, progress.Stage)
	})
}

// TestEstimateCaps 测试进度封顶和剩余时间下限
func TestEstimateCaps(t *testing.T) {
	estimator := NewProgressEstimator()

	t.Run("progress capped at 99", func(t *testing.T) {
		// 已耗时远超预估总时长
		progress := estimator.Estimate(1024, document.FileTypeTXT, time.Now().Add(-10*time.Minute))
		assert.Equal(t, 99, progress.Progress, "估算进度不应到达100%")
		assert.Equal(t, models.StageAnalyzing, progress.Stage)
		assert.Equal(t, 0, progress.EstimatedTimeRemaining)
	})

	t.Run("future start treated as zero elapsed", func(t *testing.T) {
		progress := estimator.Estimate(1024, document.FileTypeTXT, time.Now().Add(time.Minute))
		assert.Equal(t, 0, progress.Progress)
		assert.Equal(t, models.StageExtracting, progress.Stage)
	})
}

// TestEstimateMinimumDuration 小文件的预估总时长有10秒下限
func TestEstimateMinimumDuration(t *testing.T) {
	estimator := NewProgressEstimator()

	// 1KB文件按类型速率算不到1秒，应使用10秒下限：
	// 刚开始时剩余时间约等于10秒
	progress := estimator.Estimate(1024, document.FileTypeTXT, time.Now())
	assert.InDelta(t, 10, progress.EstimatedTimeRemaining, 1, "小文件预估总时长应为10秒下限")
}

// TestEstimatePerTypeRates 不同文件类型的速率差异
func TestEstimatePerTypeRates(t *testing.T) {
	estimator := NewProgressEstimator()
	// 100MB文件，刚开始处理
	const fileSize = 100 * 1024 * 1024
	now := time.Now()

	pdf := estimator.Estimate(fileSize, document.FileTypePDF, now)
	txt := estimator.Estimate(fileSize, document.FileTypeTXT, now)
	unknown := estimator.Estimate(fileSize, document.FileTypeUnknown, now)

	// PDF每MB 3秒，txt每MB 1秒，未知类型2秒
	assert.InDelta(t, 300, pdf.EstimatedTimeRemaining, 2)
	assert.InDelta(t, 100, txt.EstimatedTimeRemaining, 2)
	assert.InDelta(t, 200, unknown.EstimatedTimeRemaining, 2)
}

// TestEstimateBatchIndex 估算事件不属于任何批处理
func TestEstimateBatchIndex(t *testing.T) {
	estimator := NewProgressEstimator()
	progress := estimator.Estimate(1024, document.FileTypeTXT, time.Now())
	assert.Equal(t, -1, progress.BatchIndex)
	assert.NotEmpty(t, progress.Message)
}
