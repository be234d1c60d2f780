// Command parkterm plays the parking arena locally in a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"parkarena/broker/internal/config"
	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/simulation"
)

const (
	localClient = "terminal"
	renderRate  = 30
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parkterm: %v\n", err)
		os.Exit(2)
	}
	//1.- Console output would corrupt the screen, so logs go to the file sink only.
	cfg.Logging.Console = false
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parkterm: logging: %v\n", err)
		os.Exit(2)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Close()

	if err := play(cfg, logger); err != nil {
		logger.Error("terminal session failed", logging.Error(err))
		fmt.Fprintf(os.Stderr, "parkterm: %v\n", err)
		os.Exit(1)
	}
}

func play(cfg *config.Config, logger *logging.Logger) error {
	opts, err := simulation.SessionOptions(cfg)
	if err != nil {
		return err
	}
	session := match.NewSession(opts...)
	layout := session.Layout()

	controls := &input.Slot{}
	driver := simulation.NewDriver(session, controls, logger)
	loop := simulation.NewLoop(cfg.TickHz, driver.Step)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()
	screen.SetStyle(styleDefault)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	defer loop.Stop()

	//2.- tcell delivers key presses on its own goroutine; the render tick samples them.
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	held := newHoldTracker(holdWindow)
	ticker := time.NewTicker(time.Second / renderRate)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				act := translate(ev)
				if act.quit {
					logger.Info("terminal session ended", logging.Int("attempts", driver.Latest().Attempt))
					return nil
				}
				if act.command != "" {
					if err := driver.Enqueue(act.command); err != nil {
						logger.Warn("command dropped", logging.String("command", string(act.command)), logging.Error(err))
					}
				}
				if len(act.controls) > 0 {
					held.Press(act.controls, time.Now())
					controls.Store(localClient, held.Controls(time.Now()))
				}
			}
		case <-ticker.C:
			controls.Store(localClient, held.Controls(time.Now()))
			draw(screen, layout, driver.Latest())
		}
	}
}
