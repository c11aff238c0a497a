package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/flemzord/sage/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts app.Run to the service manager's start/stop callbacks.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

// Start must not block: the service manager waits on it.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Run(ctx, p.params) }()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

// serviceConfig describes the OS service. The installed command line is
// "sage service run" plus the flags given at install time.
func serviceConfig(params app.RunParams) (*service.Config, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		abs, err := filepath.Abs(params.DataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	return &service.Config{
		Name:        "sage",
		DisplayName: "SAGE Chatbot API",
		Description: "Conversational backend for the SAGE senior assistant.",
		Arguments:   args,
	}, nil
}

func newService(cmd *cobra.Command) (service.Service, error) {
	params := runParams(cmd)
	cfg, err := serviceConfig(params)
	if err != nil {
		return nil, err
	}
	return service.New(&program{params: params}, cfg)
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control sage as an OS service",
	}

	for _, action := range []struct{ name, short string }{
		{"install", "Install sage as a system service"},
		{"uninstall", "Remove the system service"},
		{"start", "Start the installed service"},
		{"stop", "Stop the installed service"},
		{"restart", "Restart the installed service"},
	} {
		sub := &cobra.Command{
			Use:   action.name,
			Short: action.short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action.name); err != nil {
					return fmt.Errorf("service %s: %w", action.name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action.name)
				return nil
			},
		}
		addRunFlags(sub)
		cmd.AddCommand(sub)
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether the service is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil {
				return fmt.Errorf("service status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusString(st))
			return nil
		},
	}
	addRunFlags(status)

	run := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
	addRunFlags(run)

	cmd.AddCommand(status, run)
	return cmd
}

func statusString(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
