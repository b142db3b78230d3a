package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/mailroute/internal/app"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/ui"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Run(cmd.Context())
		},
	}
}

func (c *cli) fetchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "List the most recent inbox messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			emails, err := c.app.Fetch(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderEmails(emails))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of messages (default from config)")
	return cmd
}

func (c *cli) classifyCmd() *cobra.Command {
	var (
		subject string
		body    string
		forward bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one email and optionally forward it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subject) == "" && strings.TrimSpace(body) == "" {
				return errors.New("--subject or --body is required")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			held, err := c.app.Classify(ctx, model.Email{Subject: subject, Body: body})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.RenderResult(held.Result, c.app.Config().Departments, 0))

			if !forward {
				return nil
			}
			conf, err := c.app.Forward(ctx, held)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.RenderConfirmation(conf))
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "email subject")
	cmd.Flags().StringVarP(&body, "body", "b", "", "email body")
	cmd.Flags().BoolVar(&forward, "forward", false, "forward to the chosen department")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the mailbox login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.VerifyMailbox(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render("Mailbox login OK for "+c.cfg.Mailbox.Username))
			return nil
		},
	}
}

func (c *cli) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available to the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := c.app.Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				marker := "  "
				if m == c.cfg.Model.Name {
					marker = "* "
				}
				fmt.Fprintln(cmd.OutOrStdout(), marker+m)
			}
			return nil
		},
	}
}

func (c *cli) secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets in the system keyring",
	}

	var fromStdin bool
	set := &cobra.Command{
		Use:       "set <mailbox|model|aws>",
		Short:     "Store a secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: app.SecretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := c.app.SecretKey(name); err != nil {
				return err
			}

			var (
				secret credential.Secret
				err    error
			)
			if fromStdin {
				secret, err = readSecret(cmd)
			} else {
				secret, err = ui.PromptSecret(secretTitle(name), "Stored in the system keyring, never in the config file.")
			}
			if err != nil {
				return err
			}

			if err := c.app.SetSecret(name, secret); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.SuccessStyle.Render(secretTitle(name)+" saved"))

			if name == app.SecretMailbox {
				if err := c.app.VerifyMailbox(cmd.Context()); err != nil {
					fmt.Fprintln(out, ui.WarningStyle.Render("Mailbox login failed, the secret was kept."))
					fmt.Fprintln(out, ui.RenderError(err))
				}
			}
			return nil
		},
	}
	set.Flags().BoolVar(&fromStdin, "stdin", false, "read the secret from standard input")

	del := &cobra.Command{
		Use:       "delete <mailbox|model|aws>",
		Short:     "Remove a secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: app.SecretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.DeleteSecret(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render(secretTitle(args[0])+" removed"))
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent classify and forward attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := c.app.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderHistory(events))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of events (default 20)")
	return cmd
}

func secretTitle(name string) string {
	switch name {
	case app.SecretMailbox:
		return "Mailbox app password"
	case app.SecretModel:
		return "Model API key"
	case app.SecretAWS:
		return "AWS secret access key"
	default:
		return name
	}
}

func readSecret(cmd *cobra.Command) (credential.Secret, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return credential.Secret{}, fmt.Errorf("reading secret: %w", err)
		}
		return credential.Secret{}, errors.New("empty secret")
	}
	return credential.NewSecret(line), nil
}
