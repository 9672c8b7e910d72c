package main

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"EquityReach/pkg/collector"
	"EquityReach/pkg/config"
	"EquityReach/pkg/database"
	"EquityReach/pkg/messaging"
	"EquityReach/pkg/model"
	"EquityReach/pkg/provider"
	"EquityReach/pkg/ratio"
)

// 一次性批量采集工具：行情、快照、报表、比率按需组合执行
func main() {
	market := flag.String("market", model.MarketKOSPI, "市场代码 (KOSPI/KOSDAQ/KONEX)")
	mode := flag.String("mode", "incremental", "采集模式 (incremental/full)")
	maxStocks := flag.Int("max-stocks", 0, "最多处理的股票数量，0 表示不限制")
	withSnapshots := flag.Bool("snapshots", true, "是否采集当日市场快照")
	withFinancial := flag.Bool("financial", false, "是否采集财务报表")
	startYear := flag.Int("start-year", 0, "报表起始年度，0 表示只采上一年度")
	endYear := flag.Int("end-year", 0, "报表结束年度，0 表示上一年度")
	reportTypes := flag.String("report-types", "annual", "报告类型，逗号分隔 (annual,Q1,Q2,Q3)")
	withRatios := flag.Bool("ratios", false, "采集完成后是否批量计算比率")
	flag.Parse()

	log.Println("启动数据采集服务...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 连接数据库
	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("连接数据库失败: %v\n", err)
	}
	defer db.Close()

	// 消息广播（可选）
	var publisher *messaging.NATSClient
	if cfg.NATS.URL != "" {
		publisher, err = messaging.NewNATSClient(cfg.NATS.URL)
		if err != nil {
			log.Printf("连接NATS失败，事件广播已禁用: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// 数据源适配器
	krx := provider.NewKRXAdapter(cfg.DataSources.KRX.BaseURL, cfg.DataSources.KRX.Timeout)

	marketCollector := collector.NewBatchCollector(
		db.Stock(), db.Price(), db.MarketData(),
		collector.Sources{Listings: krx, Bars: krx, Snapshots: krx},
		collector.SleepDelayer{Interval: cfg.Collector.RequestDelay},
		collector.Settings{
			CommitBatchSize: cfg.Collector.CommitBatchSize,
			FullWindowDays:  cfg.Collector.FullWindowDays,
		},
	)

	// 行情采集
	collectMode := model.ModeIncremental
	if *mode == string(model.ModeFull) {
		collectMode = model.ModeFull
	}
	if *maxStocks <= 0 {
		*maxStocks = cfg.Collector.MaxStocks
	}

	prices, err := marketCollector.CollectPrices(collector.Options{
		Market:    *market,
		Mode:      collectMode,
		MaxStocks: *maxStocks,
	})
	if err != nil {
		log.Fatalf("行情采集失败: %v\n", err)
	}
	publishCollection(publisher, messaging.SubjectPricesCollected, prices)

	// 当日市场快照
	if *withSnapshots {
		snapshots, err := marketCollector.CollectSnapshots(*market, time.Now())
		if err != nil {
			log.Printf("快照采集失败: %v", err)
		} else {
			publishCollection(publisher, messaging.SubjectSnapshotsCollected, snapshots)
		}
	}

	// 财务报表
	if *withFinancial {
		dart := provider.NewDartAdapter(
			cfg.DataSources.Dart.APIKey,
			cfg.DataSources.Dart.BaseURL,
			cfg.DataSources.Dart.Timeout,
		)
		statementCollector := collector.NewStatementCollector(
			db.Stock(), db.Financial(), dart,
			collector.SleepDelayer{Interval: cfg.Collector.StatementDelay},
		)

		result, err := statementCollector.CollectStatements(collector.StatementOptions{
			Market:       *market,
			StartYear:    *startYear,
			EndYear:      *endYear,
			ReportTypes:  splitReportTypes(*reportTypes),
			Incremental:  collectMode == model.ModeIncremental,
			SkipExisting: true,
			MaxStocks:    *maxStocks,
		})
		if err != nil {
			log.Fatalf("报表采集失败: %v\n", err)
		}
		if publisher != nil {
			if err := publisher.PublishStatementResult(result); err != nil {
				log.Printf("广播报表采集结果失败: %v", err)
			}
		}
	}

	// 比率计算
	if *withRatios {
		ratioService := ratio.NewService(
			db.Stock(), db.Financial(), db.MarketData(),
			cfg.Collector.SnapshotLookbackDays,
		)
		result, err := ratioService.CalculateBatch(*market, *maxStocks)
		if err != nil {
			log.Fatalf("比率计算失败: %v\n", err)
		}
		if publisher != nil {
			if err := publisher.PublishRatioResult(result); err != nil {
				log.Printf("广播比率计算结果失败: %v", err)
			}
		}
	}

	log.Println("采集任务执行完毕")
}

// splitReportTypes 解析逗号分隔的报告类型
func splitReportTypes(raw string) []string {
	parts := strings.Split(raw, ",")
	types := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			types = append(types, trimmed)
		}
	}
	return types
}

// publishCollection 广播采集结果，未启用消息时跳过
func publishCollection(publisher *messaging.NATSClient, subject string, result *model.CollectionResult) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishCollectionResult(subject, result); err != nil {
		log.Printf("广播采集结果失败: %v", err)
	}
}
