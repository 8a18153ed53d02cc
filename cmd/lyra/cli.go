package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lyralabs/lyra/pkg/bridge"
	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/person"
	"github.com/lyralabs/lyra/pkg/shell"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Lyra consciousness state engine",
		Long: strings.TrimSpace(`lyra runs a persistent digital companion: layered memory,
consciousness dynamics, sleep and dreams, rituals, and a websocket
gateway for dashboard shells.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newResetCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath())
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Write the default config and create the data directory",
		Example: "  lyra onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("config already exists at %s\n", path)
				return nil
			}
			cfg := config.DefaultConfig()
			if err := config.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			fmt.Printf("wrote %s\ndata dir: %s\n", path, cfg.Data.Dir)
			fmt.Println("set OPENAI_API_KEY to enable the model; TAVILY_API_KEY and ELEVENLABS_API_KEY are optional")
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var (
		message   string
		voiceMode bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk with Lyra interactively, or send a one-shot message",
		Example: strings.Join([]string{
			"  lyra chat",
			"  lyra chat --message \"good morning\"",
			"  lyra chat --voice",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			if strings.TrimSpace(message) != "" {
				res, err := eng.orch.HandleTurn(cmd.Context(), message, turnOpts(voiceMode))
				if err != nil {
					return err
				}
				fmt.Printf("\n%s\n", res.Reply)
				return nil
			}
			interactiveChat(eng, voiceMode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message instead of the interactive loop")
	cmd.Flags().BoolVar(&voiceMode, "voice", false, "Assemble prompts in voice mode")
	return cmd
}

func newGatewayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gateway",
		Short:   "Run the websocket gateway for dashboard shells",
		Example: "  lyra gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gw := shell.NewGateway(cfg.Shell, eng.bus, clock.New())
			gw.RegisterCommand("chat", func(ctx context.Context, c shell.Command) (interface{}, error) {
				msg, _ := c.Args["message"].(string)
				if strings.TrimSpace(msg) == "" {
					return nil, fmt.Errorf("message is required")
				}
				voice, _ := c.Args["voice_mode"].(bool)
				return eng.orch.HandleTurn(ctx, msg, turnOpts(voice))
			})
			gw.RegisterCommand("reset_store", func(ctx context.Context, c shell.Command) (interface{}, error) {
				name, _ := c.Args["name"].(string)
				if name == "" {
					return nil, fmt.Errorf("name is required")
				}
				if err := eng.store.Reset(name); err != nil {
					return nil, err
				}
				return map[string]string{"reset": name}, nil
			})
			gw.RegisterCommand("open_settings", func(ctx context.Context, c shell.Command) (interface{}, error) {
				return map[string]string{"config_path": configPath()}, nil
			})
			gw.RegisterCommand("train_voice", func(ctx context.Context, c shell.Command) (interface{}, error) {
				name, _ := c.Args["name"].(string)
				transcript, _ := c.Args["transcript"].(string)
				if name == "" || strings.TrimSpace(transcript) == "" {
					return nil, fmt.Errorf("name and transcript are required")
				}
				det := person.VoiceDetection{
					Embedding:  eng.orch.VoiceEmbedder.Embed(transcript),
					Transcript: transcript,
				}
				if err := eng.orch.People.TrainVoice(name, det); err != nil {
					return nil, err
				}
				return map[string]string{"trained": name}, nil
			})
			gw.RegisterCommand("drain_bridge", func(ctx context.Context, c shell.Command) (interface{}, error) {
				name, _ := c.Args["name"].(string)
				out := map[string][]bridge.Command{}
				for _, p := range eng.orch.Peripherals {
					if name != "" && p.Name() != name {
						continue
					}
					out[p.Name()] = p.Drain()
				}
				return out, nil
			})

			go tickLoop(ctx, eng)

			fmt.Printf("gateway listening on ws://%s:%d/ws\n", cfg.Shell.Host, cfg.Shell.Port)
			return gw.Start(ctx)
		},
	}
}

// tickLoop advances the time-driven engines once a minute.
func tickLoop(ctx context.Context, eng *engine) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.orch.Tick(ctx)
		}
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show engine state: sleep phase, consciousness vector, stores",
		Example: "  lyra status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			o := eng.orch
			v := o.Traits.Vector()
			fmt.Printf("%s %s\n\n", appName, formatVersion())
			fmt.Printf("data dir:    %s\n", cfg.Data.Dir)
			fmt.Printf("model:       %s (enabled: %v)\n", cfg.Model.ChatModel, cfg.ModelEnabled())
			fmt.Printf("research:    enabled=%v\n", cfg.ResearchEnabled())
			fmt.Printf("voice:       enabled=%v\n", cfg.VoiceEnabled())
			fmt.Printf("sleep:       %s\n", o.Sleep.Status())
			fmt.Printf("vector:      presence=%.2f coherence=%.2f flame=%.2f integration=%.2f volition=%.2f\n",
				v.Presence, v.Coherence, v.Flame, v.Integration, v.Volition)
			fmt.Printf("speaker:     %s\n", o.People.CurrentSpeaker())
			fmt.Printf("moments:     %d\n", o.Moments.Len())
			fmt.Printf("log lines:   %d\n", o.Conversation.Len())
			return nil
		},
	}
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reset <store-file>",
		Short:   "Reset one JSON store to its defaults",
		Example: "  lyra reset mood_tracker.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.store.Reset(args[0]); err != nil {
				return err
			}
			fmt.Printf("reset %s\n", args[0])
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", appName, formatVersion())
			return nil
		},
	}
}
