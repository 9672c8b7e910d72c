package scheduler

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"EquityReach/pkg/collector"
	"EquityReach/pkg/messaging"
	"EquityReach/pkg/model"
)

// MarketCollector 行情与快照采集入口
type MarketCollector interface {
	CollectPrices(options collector.Options) (*model.CollectionResult, error)
	CollectSnapshots(market string, date time.Time) (*model.CollectionResult, error)
}

// RatioCalculator 比率批量重算入口
type RatioCalculator interface {
	CalculateBatch(market string, limit int) (*model.RatioBatchResult, error)
}

// Publisher 批次结果广播，可为 nil（未启用消息时）
type Publisher interface {
	PublishCollectionResult(subject string, result *model.CollectionResult) error
	PublishRatioResult(result *model.RatioBatchResult) error
}

// Scheduler 任务调度器
// 工作日收盘后做增量采集，周末批量重算比率；同类任务不允许重入
type Scheduler struct {
	cron      *cron.Cron
	collector MarketCollector
	ratios    RatioCalculator
	publisher Publisher

	koreaSpec string
	ratioSpec string

	collecting  int32
	calculating int32
}

// collectMarkets 每日增量采集覆盖的市场
var collectMarkets = []string{model.MarketKOSPI, model.MarketKOSDAQ}

// NewScheduler 创建任务调度器
func NewScheduler(marketCollector MarketCollector, ratios RatioCalculator, publisher Publisher, koreaSpec, ratioSpec string) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		collector: marketCollector,
		ratios:    ratios,
		publisher: publisher,
		koreaSpec: koreaSpec,
		ratioSpec: ratioSpec,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.koreaSpec, s.collectKorea); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.ratioSpec, s.recalculateRatios); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("调度器已启动: 采集 %q, 重算 %q", s.koreaSpec, s.ratioSpec)
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// collectKorea 每日增量采集：行情加当日市场快照
func (s *Scheduler) collectKorea() {
	if !atomic.CompareAndSwapInt32(&s.collecting, 0, 1) {
		log.Println("上一轮采集尚未结束，本轮跳过")
		return
	}
	defer atomic.StoreInt32(&s.collecting, 0)

	today := time.Now()
	for _, market := range collectMarkets {
		prices, err := s.collector.CollectPrices(collector.Options{
			Market: market,
			Mode:   model.ModeIncremental,
		})
		if err != nil {
			log.Printf("%s 定时行情采集失败: %v", market, err)
		} else {
			s.publishCollection(messaging.SubjectPricesCollected, prices)
		}

		snapshots, err := s.collector.CollectSnapshots(market, today)
		if err != nil {
			log.Printf("%s 定时快照采集失败: %v", market, err)
		} else {
			s.publishCollection(messaging.SubjectSnapshotsCollected, snapshots)
		}
	}
}

// recalculateRatios 每周批量重算全部比率
func (s *Scheduler) recalculateRatios() {
	if !atomic.CompareAndSwapInt32(&s.calculating, 0, 1) {
		log.Println("上一轮比率重算尚未结束，本轮跳过")
		return
	}
	defer atomic.StoreInt32(&s.calculating, 0)

	result, err := s.ratios.CalculateBatch("", 0)
	if err != nil {
		log.Printf("定时比率重算失败: %v", err)
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRatioResult(result); err != nil {
			log.Printf("广播比率重算结果失败: %v", err)
		}
	}
}

// publishCollection 广播采集结果，未启用消息时跳过
func (s *Scheduler) publishCollection(subject string, result *model.CollectionResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCollectionResult(subject, result); err != nil {
		log.Printf("广播采集结果失败: %v", err)
	}
}
