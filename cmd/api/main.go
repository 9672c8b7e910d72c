package main

import (
	"log"
	"os"

	"EquityReach/pkg/api"
	"EquityReach/pkg/collector"
	"EquityReach/pkg/config"
	"EquityReach/pkg/database"
	"EquityReach/pkg/messaging"
	"EquityReach/pkg/provider"
	"EquityReach/pkg/quality"
	"EquityReach/pkg/ratio"
	"EquityReach/pkg/scheduler"
	"EquityReach/pkg/screener"
)

func main() {
	log.Println("启动API服务...")

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

	// 数据源适配器
	krx := provider.NewKRXAdapter(cfg.DataSources.KRX.BaseURL, cfg.DataSources.KRX.Timeout)
	dart := provider.NewDartAdapter(
		cfg.DataSources.Dart.APIKey,
		cfg.DataSources.Dart.BaseURL,
		cfg.DataSources.Dart.Timeout,
	)

	// 采集器
	marketCollector := collector.NewBatchCollector(
		db.Stock(), db.Price(), db.MarketData(),
		collector.Sources{Listings: krx, Bars: krx, Snapshots: krx},
		collector.SleepDelayer{Interval: cfg.Collector.RequestDelay},
		collector.Settings{
			CommitBatchSize: cfg.Collector.CommitBatchSize,
			FullWindowDays:  cfg.Collector.FullWindowDays,
		},
	)
	statementCollector := collector.NewStatementCollector(
		db.Stock(), db.Financial(), dart,
		collector.SleepDelayer{Interval: cfg.Collector.StatementDelay},
	)

	// 比率计算、质量检查与筛选
	ratioService := ratio.NewService(
		db.Stock(), db.Financial(), db.MarketData(),
		cfg.Collector.SnapshotLookbackDays,
	)
	checker := quality.NewChecker(db.Stock(), db.Financial(), db.Analytics())
	stockScreener := screener.NewScreener(db.Analytics())

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

	// 定时任务
	if cfg.Scheduler.Enabled {
		var schedulerPublisher scheduler.Publisher
		if publisher != nil {
			schedulerPublisher = publisher
		}
		tasks := scheduler.NewScheduler(
			marketCollector, ratioService, schedulerPublisher,
			cfg.Scheduler.KoreaSchedule, cfg.Scheduler.RatioSchedule,
		)
		if err := tasks.Start(); err != nil {
			log.Fatalf("启动调度器失败: %v\n", err)
		}
		defer tasks.Stop()
	}

	// 创建API处理程序
	var apiPublisher api.Publisher
	if publisher != nil {
		apiPublisher = publisher
	}
	handlers := api.NewHandlers(
		marketCollector, statementCollector, ratioService,
		checker, stockScreener, db.Stock(), apiPublisher,
	)

	// 创建并启动服务器
	server := api.NewServer(cfg.API.Port)
	server.SetupRoutes(handlers)
	server.Start()
}
