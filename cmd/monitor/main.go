package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"EquityReach/pkg/config"
	"EquityReach/pkg/messaging"
	"EquityReach/pkg/model"
	"EquityReach/pkg/quality"
)

// 批次事件监控：订阅采集与计算结果事件并输出摘要日志
func main() {
	log.Println("启动批次监控服务...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}
	if cfg.NATS.URL == "" {
		log.Fatalln("未配置NATS地址，监控服务无法启动")
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("连接NATS失败: %v\n", err)
	}
	defer natsClient.Close()

	subscriptions := []struct {
		stream   string
		consumer string
		subject  string
		handler  messaging.MessageHandler
	}{
		{"COLLECTIONS_STREAM", "monitor-prices", messaging.SubjectPricesCollected, logCollection("行情采集")},
		{"COLLECTIONS_STREAM", "monitor-snapshots", messaging.SubjectSnapshotsCollected, logCollection("快照采集")},
		{"COLLECTIONS_STREAM", "monitor-statements", messaging.SubjectStatementsCollected, logStatements},
		{"ANALYTICS_STREAM", "monitor-ratios", messaging.SubjectRatiosCalculated, logRatios},
		{"ANALYTICS_STREAM", "monitor-quality", messaging.SubjectQualityReport, logQuality},
	}
	for _, sub := range subscriptions {
		if err := natsClient.Subscribe(sub.stream, sub.consumer, sub.subject, sub.handler); err != nil {
			log.Fatalf("订阅 %s 失败: %v\n", sub.subject, err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("正在关闭批次监控服务...")
}

// logCollection 行情/快照批次结果日志
func logCollection(label string) messaging.MessageHandler {
	return func(data []byte) error {
		var result model.CollectionResult
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("解析采集结果失败: %w", err)
		}
		log.Printf("[%s] 批次 %s 市场 %s: 处理 %d 成功 %d 失败 %d, 行情 %d 快照 %d, 耗时 %.1fs\n",
			label, result.RunID, result.Market,
			result.StocksProcessed, result.StocksSucceeded, result.StocksFailed,
			result.PricesSaved, result.SnapshotsSaved, result.DurationSeconds)
		for _, collectErr := range result.Errors {
			log.Printf("[%s] 失败明细 %s: %s\n", label, collectErr.Ticker, collectErr.Message)
		}
		return nil
	}
}

// logStatements 报表批次结果日志
func logStatements(data []byte) error {
	var result model.StatementBatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("解析报表批次结果失败: %w", err)
	}
	log.Printf("[报表采集] 批次 %s %d-%d年: 处理 %d 成功 %d 跳过 %d 失败 %d, 报表 %d 份\n",
		result.RunID, result.StartYear, result.EndYear,
		result.StocksProcessed, result.StocksSucceeded, result.StocksSkipped,
		result.StocksFailed, result.StatementsCollected)
	return nil
}

// logRatios 比率批次结果日志
func logRatios(data []byte) error {
	var result model.RatioBatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("解析比率批次结果失败: %w", err)
	}
	log.Printf("[比率计算] 股票 %d: 成功 %d 失败 %d, 保存比率 %d 条\n",
		result.StocksProcessed, result.StocksSucceeded, result.StocksFailed,
		result.TotalRatiosSaved)
	return nil
}

// logQuality 质量报告日志
func logQuality(data []byte) error {
	var report quality.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("解析质量报告失败: %w", err)
	}
	log.Printf("[质量报告] 市场 %s: 评分 %.1f 等级 %s, 异常率 %.1f%% 缺失率 %.1f%%\n",
		report.Market, report.Score, report.Grade, report.AnomalyRate, report.MissingRate)
	return nil
}
