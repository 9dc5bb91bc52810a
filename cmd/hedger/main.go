package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/hedger/internal/config"
	"github.com/assist-by/hedger/internal/engine"
	"github.com/assist-by/hedger/internal/scheduler"
)

// 빌드 시 ldflags로 설정
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:          "hedger",
		Short:        "바이낸스 선물 헤지 쌍 트레이더",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			a, err = newApp(cfg)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.Close()
			}
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true

	current := func() *app { return a }
	root.AddCommand(
		newInitCmd(current),
		newTickCmd(current),
		newRunCmd(current),
		newStatusCmd(current),
		newVersionCmd(),
	)
	return root
}

func newInitCmd(current func() *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "거래소 설정을 맞추고 첫 계정 스냅샷을 저장합니다",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			acct, err := a.engine.Initialize(cmd.Context(), force)
			if errors.Is(err, engine.ErrAlreadyInitialized) {
				return fmt.Errorf("%w: 다시 초기화하려면 --force를 사용하세요", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 초기화 완료: 자본 %.4f, 슬롯 %d개, 수수료율 %.5f, 다음 봉 %s\n",
				acct.Symbol(), acct.Capital(), acct.MaxOpenPositions(), acct.FeeRate(),
				acct.NextTimestamp().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "기존 스냅샷이 있어도 새 계정으로 시작")
	return cmd
}

func newTickCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "틱을 한 번 실행합니다 (외부 스케줄러용)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := current().engine.RunOnce(cmd.Context())
			if errors.Is(err, engine.ErrTooEarly) {
				fmt.Fprintln(cmd.OutOrStdout(), "다음 봉까지 시간이 남아 틱을 건너뜁니다")
				return nil
			}
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}

func newRunCmd(current func() *app) *cobra.Command {
	var offset time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "봉 경계마다 틱을 실행하고 /metrics를 제공합니다",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewScheduler(a.cfg.Interval().Duration(), a.engine,
				scheduler.WithOffset(offset),
				scheduler.WithLogger(a.log))

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())
			srv := &http.Server{Addr: a.cfg.App.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				a.log.Info("지표 서버 시작", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("지표 서버 오류: %w", err)
				}
				return nil
			})
			group.Go(func() error {
				err := sched.Start(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			group.Go(func() error {
				<-ctx.Done()
				sched.Stop()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			a.log.Info("헤저 시작",
				zap.String("symbol", a.cfg.Symbol()),
				zap.String("interval", string(a.cfg.Interval())),
				zap.Bool("real_mode", a.cfg.Trading.RealMode),
				zap.Bool("testnet", a.cfg.Binance.UseTestnet))
			if err := a.notifier.SendInfo(fmt.Sprintf("헤저 시작: %s %s", a.cfg.Symbol(), a.cfg.Interval())); err != nil {
				a.log.Warn("시작 알림 전송 실패", zap.Error(err))
			}

			err := group.Wait()
			a.log.Info("헤저 종료", zap.Error(err))
			return err
		},
	}
	cmd.Flags().DurationVar(&offset, "offset", time.Second, "봉 경계 이후 틱 실행까지의 지연")
	return cmd
}

func newStatusCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "저장된 계정 상태와 거래 집계를 출력합니다",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := current().engine.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "버전 정보를 출력합니다",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hedger %s (built %s)\n", Version, BuildTime)
		},
	}
}
