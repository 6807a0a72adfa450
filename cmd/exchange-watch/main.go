package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/fourcasters/pkg/config"
	"github.com/betbot/fourcasters/pkg/logger"
	"github.com/betbot/fourcasters/pkg/sdk/api"
	"github.com/betbot/fourcasters/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	league := flag.String("league", "upcoming", "要监控的联赛")
	flag.Parse()

	// .env 中的环境变量可以覆盖配置文件缺失的字段
	if err := godotenv.Load(); err == nil {
		fmt.Println("已加载 .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	client := api.NewClient(api.Config{
		BaseURL:          cfg.Exchange.BaseURL,
		SocketURL:        cfg.Exchange.SocketURL,
		Username:         cfg.Exchange.Username,
		Password:         cfg.Exchange.Password,
		Currency:         cfg.Exchange.Currency,
		CommissionRate:   cfg.Exchange.CommissionRate,
		TradingTimeout:   time.Duration(cfg.Timeouts.TradingSeconds) * time.Second,
		ReportingTimeout: time.Duration(cfg.Timeouts.ReportingSeconds) * time.Second,
		Logger:           logger.WithField("app", "exchange-watch"),
	})
	defer client.Close()

	ctx := context.Background()

	if _, err := client.Login(ctx); err != nil {
		log.Fatalf("登录失败: %v", err)
	}
	logger.Infof("已登录，报价格式: %s", client.PriceFormat())

	// 订阅推送事件
	client.OnUserConnected(func() { logger.Info("用户通道已连接") })
	client.OnUserDisconnected(func(reason string) { logger.Warnf("用户通道断开: %s", reason) })
	client.OnPublicConnected(func() { logger.Info("公共通道已连接") })
	client.OnPublicDisconnected(func(reason string) { logger.Warnf("公共通道断开: %s", reason) })

	client.OnPositionUpdate(func(msg api.PositionUpdateMessage) {
		entry := logger.WithField("game", msg.EventName)
		if msg.Matched != nil && msg.Matched.Price != nil {
			entry.Infof("持仓成交 %s @ %s (佣金率 %s)",
				msg.Matched.BetID(), msg.Matched.Price, msg.Matched.CommissionRate())
		}
		if msg.Unmatched != nil {
			entry.Infof("挂单更新 %s", msg.Unmatched.OfferID())
		}
	})
	client.OnGameUpdate(func(msg api.GameUpdateMessage) {
		logger.Debugf("赛事更新 %s (%s)", msg.EventName, msg.ID)
	})
	client.OnOrderUpdate(func(msg api.OrderUpdateMessage) {
		logger.Debugf("盘口更新 %s: %d 条挂单", msg.GameID, len(msg.SideOrders))
	})

	if err := client.InitialiseChannels(ctx); err != nil {
		log.Fatalf("初始化推送通道失败: %v", err)
	}

	leagues, err := client.GetLeagues(ctx)
	if err != nil {
		log.Fatalf("获取联赛失败: %v", err)
	}
	if leagues.Data != nil {
		logger.Infof("可用联赛: %d 个", len(leagues.Data.Leagues))
	}

	games, err := client.GetGames(ctx, *league, "")
	if err != nil {
		log.Fatalf("获取赛事失败: %v", err)
	}
	if games.Data != nil {
		for _, g := range games.Data.Games {
			best := "无挂单"
			if len(g.HomeMoneylines) > 0 && g.HomeMoneylines[0].Price != nil {
				best = g.HomeMoneylines[0].Price.String()
			}
			logger.Infof("%s [%s] 主队最优价: %s", g.EventName, g.League, best)
		}
	}

	// 等待退出信号后优雅关闭
	sd := shutdown.NewManager()
	sd.OnShutdown(func(context.Context) { client.Close() })

	sig := sd.Wait()
	logger.Infof("收到退出信号 %v，关闭中...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sd.Shutdown(shutdownCtx)
}
