// cmd/rigid2d/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/opd-ai/rigid2d/pkg/config"
	"github.com/opd-ai/rigid2d/pkg/logging"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "rigid2d.json", "Path to configuration file (.json, .yaml or .toml)")
	createDefault := flag.Bool("default", false, "Write the default configuration to -config and exit")
	sceneName := flag.String("scene", "", "Replace the configured scene with a built-in template")
	listScenes := flag.Bool("list-scenes", false, "List the built-in scene templates and exit")
	steps := flag.Int("steps", 0, "Run this many fixed steps headless and print the final snapshot")
	ascii := flag.Bool("ascii", false, "With -steps, print an ASCII frame instead of JSON")
	maxClients := flag.Int("max-clients", 16, "Maximum concurrent stream clients (0 means no limit)")
	flag.Parse()

	if *listScenes {
		templates := config.ListSceneTemplates()
		names := make([]string, 0, len(templates))
		for name := range templates {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-16s %s\n", name, templates[name])
		}
		return
	}

	if *createDefault {
		cfg := config.DefaultConfig()
		if *sceneName != "" {
			if err := config.ApplySceneTemplate(cfg, *sceneName); err != nil {
				logger.Error(ctx, "Failed to apply scene template", err, "scene", *sceneName)
				os.Exit(1)
			}
		}
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	cfg, err := loadConfig(ctx, logger, *configPath, *sceneName)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}

	if *steps > 0 {
		if err := runHeadless(cfg, logger, *steps, *ascii, os.Stdout); err != nil {
			logger.Error(ctx, "Headless run failed", err)
			os.Exit(1)
		}
		return
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(runCtx, cfg, logger, *maxClients, nil); err != nil {
		logger.Error(ctx, "Server failed", err)
		os.Exit(1)
	}
}
