package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"os/signal"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/OriD-19/perf_overlay/config"
	"github.com/OriD-19/perf_overlay/logger"
	"github.com/OriD-19/perf_overlay/overlay"
	"github.com/OriD-19/perf_overlay/probe"
	"github.com/OriD-19/perf_overlay/publish"
)

const (
	screenWidth  = 640
	screenHeight = 360
	workPerTick  = 200_000 // iterations of the synthetic update workload
	lineWidth    = 140
	lineHeight   = 20
)

var panelColor = color.RGBA{0, 0, 0, 178}

type game struct {
	ctx     context.Context
	overlay *overlay.Overlay
	cpu     *probe.Stopwatch
	gpu     *probe.IntervalProbe
	phase   float64
	scratch float64
	textImg *ebiten.Image
}

func (g *game) Update() error {
	if err := g.ctx.Err(); err != nil {
		return ebiten.Termination
	}

	g.cpu.Begin()
	for i := range workPerTick {
		g.scratch += math.Sin(g.phase + float64(i))
	}
	g.phase += 0.01
	g.cpu.End()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	g.gpu.Mark()
	m := g.overlay.Tick(g.ctx)

	vector.DrawFilledRect(screen, 50, 10, 150, 65, panelColor, false)
	for i, line := range overlay.Lines(m) {
		g.drawLine(screen, line, 55, 15+i*20)
	}
}

// drawLine prints white debug text off-screen and tints it with the line colour
func (g *game) drawLine(screen *ebiten.Image, line overlay.Line, x, y int) {
	if g.textImg == nil {
		g.textImg = ebiten.NewImage(lineWidth, lineHeight)
	}
	g.textImg.Clear()
	ebitenutil.DebugPrintAt(g.textImg, line.Text, 0, 0)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(line.Color)
	screen.DrawImage(g.textImg, op)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error setting up logger:", err)
		os.Exit(1)
	}
	defer logger.Flush(log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx, log.Logger.With(zap.String("agent_id", cfg.AgentID)))

	sinks, err := buildSinks(ctx, cfg, log.Logger)
	if err != nil {
		log.Logger.Fatal("building sinks", zap.Error(err))
	}

	cpu := probe.NewStopwatch(nil)
	gpu := probe.NewIntervalProbe(nil)
	ov := overlay.New(cpu, gpu, log.Logger,
		overlay.WithWindow(cfg.WindowDuration),
		overlay.WithSinks(sinks...),
	)
	defer ov.Close()

	log.Logger.Info("overlay started",
		zap.Duration("window", cfg.WindowDuration),
		zap.Int("tps", cfg.TPS),
		zap.Int("sinks", len(sinks)),
	)

	ebiten.SetWindowTitle("Performance Overlay")
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetTPS(cfg.TPS)

	g := &game{ctx: ctx, overlay: ov, cpu: cpu, gpu: gpu}
	if err := ebiten.RunGame(g); err != nil {
		log.Logger.Error("window closed with error", zap.Error(err))
	}
}

// buildSinks wires the publishers enabled in cfg
func buildSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]publish.Sink, error) {
	sinks := []publish.Sink{publish.NewLogSink(log)}

	if cfg.DBPath != "" {
		store, err := publish.NewSQLite(cfg.DBPath, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}

	if cfg.ServerURL != "" {
		ws := publish.NewWebSocketClient(cfg.ServerURL, cfg.AgentID, log)
		if err := ws.Connect(); err != nil {
			log.Warn("websocket server unavailable, will retry", zap.Error(err))
		}
		ws.StartReconnectLoop(ctx)
		sinks = append(sinks, ws)
	}

	return sinks, nil
}
