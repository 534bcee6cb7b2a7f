package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/kardianos/service"
)

// program runs serve under the OS service manager.
type program struct {
	run    func(ctx context.Context) error
	logger *log.Logger

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := p.run(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("service stopped unexpectedly", "err", err)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()
	return <-p.done
}

func serviceConfig(cfg config) (*service.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("error getting working directory: %w", err)
	}
	keyFile, err := filepath.Abs(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("error resolving key file path: %w", err)
	}
	args := append([]string{}, cfg.flagArgs...)
	// the last -k wins, so the service never depends on its own working directory or home
	args = append(args, "-k", keyFile, "service", "run")
	return &service.Config{
		Name:             "gatewayip",
		DisplayName:      "Gateway IP reconciler",
		Description:      "Keeps a Cloudflare gateway location pointed at a dynamic DNS hostname.",
		Arguments:        args,
		WorkingDirectory: wd,
	}, nil
}

func controlService(cfg config, logger *log.Logger) error {
	if len(cfg.args) != 1 {
		return fmt.Errorf("usage: gatewayip [flags] service <run|%s|%s|%s|%s|%s>",
			service.ControlAction[0], service.ControlAction[1], service.ControlAction[2], service.ControlAction[3], service.ControlAction[4])
	}
	action := cfg.args[0]

	svcConfig, err := serviceConfig(cfg)
	if err != nil {
		return err
	}
	prg := &program{
		run:    func(ctx context.Context) error { return serve(ctx, cfg, logger) },
		logger: logger,
	}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("error creating service: %w", err)
	}

	if action == "run" {
		return s.Run()
	}
	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("service %s: %w; valid actions: %q", action, err, service.ControlAction)
	}
	logger.Info("service action completed", "action", action, "platform", service.Platform())
	return nil
}
