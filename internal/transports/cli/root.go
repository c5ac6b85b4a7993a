package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ventgate/internal/core"
)

const defaultCallTimeout = 60 * time.Second

// Session открытое соединение с рантаймом для разовых команд.
type Session interface {
	Capabilities(ctx context.Context) ([]core.Capability, error)
	Invoke(ctx context.Context, requestID string, req core.CapabilityRequest) (core.CapabilityResult, error)
	Close() error
}

// Backend запускает шлюз и открывает сессии; реализуется пакетом app.
type Backend interface {
	Serve(ctx context.Context, configPath string) error
	Open(ctx context.Context, configPath string) (Session, error)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// New создает корневую CLI-команду.
func New(backend Backend, version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ventgate",
		Short:         "HTTP-шлюз к рантайму capability по MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к YAML-конфигу")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newServeCmd(backend, &configPath))
	root.AddCommand(newCapabilitiesCmd(backend, &configPath))
	root.AddCommand(newInvokeCmd(backend, &configPath))

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newServeCmd(backend Backend, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить рантайм и HTTP-шлюз",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return backend.Serve(cmd.Context(), *configPath)
		},
	}
}

func newCapabilitiesCmd(backend Backend, configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Показать capability рантайма",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultCallTimeout)
			defer cancel()

			sess, err := backend.Open(ctx, *configPath)
			if err != nil {
				return err
			}
			defer sess.Close()

			caps, err := sess.Capabilities(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"capabilities": caps})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCapabilities(caps))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести JSON вместо таблицы")
	return cmd
}

func newInvokeCmd(backend Backend, configPath *string) *cobra.Command {
	var rawArgs string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "invoke NAME",
		Short: "Вызвать capability и вывести результат",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := core.ParseArguments(json.RawMessage(rawArgs))
			if err != nil {
				return err
			}
			req := core.CapabilityRequest{Name: args[0], Arguments: callArgs}
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sess, err := backend.Open(ctx, *configPath)
			if err != nil {
				return err
			}
			defer sess.Close()

			res, err := sess.Invoke(ctx, uuid.NewString(), req)
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, res.Payload, "", "  "); err != nil {
				out.Reset()
				out.Write(res.Payload)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&rawArgs, "args", "a", "{}", "аргументы вызова, JSON-объект")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultCallTimeout, "общий таймаут команды")
	return cmd
}

func renderCapabilities(caps []core.Capability) string {
	if len(caps) == 0 {
		return mutedStyle.Render("no capabilities advertised")
	}
	rows := make([][]string, 0, len(caps))
	for _, c := range caps {
		rows = append(rows, []string{c.Name, firstLine(c.Description)})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("NAME", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
