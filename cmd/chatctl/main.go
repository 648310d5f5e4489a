package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/josinaldojr/pdf-chat-rag/internal/config"
	"github.com/josinaldojr/pdf-chat-rag/pkg/chatapi"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.ClientConfig) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "chatctl",
		Short:         "Command line client for the PDF chat API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("base-url", cfg.BaseURL, "API base URL")
	rootCmd.PersistentFlags().Duration("timeout", cfg.Timeout, "HTTP request timeout")

	rootCmd.AddCommand(
		uploadCmd(),
		retrieveCmd(),
		chatCmd(),
		sessionsCmd(),
		messagesCmd(),
	)
	return rootCmd
}

func clientFrom(cmd *cobra.Command) (*chatapi.Client, error) {
	baseURL, _ := cmd.Flags().GetString("base-url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return chatapi.New(baseURL, chatapi.WithTimeout(timeout))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF and index it for retrieval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			out, err := cl.UploadPDFFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func retrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve the chunks of a PDF most relevant to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfID, _ := cmd.Flags().GetString("pdf")
			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			chunks, err := cl.RetrieveChunks(cmd.Context(), args[0], pdfID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), chunks)
		},
	}
	cmd.Flags().String("pdf", "", "PDF id returned by upload")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <query>",
		Short: "Send a chat message in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			save, _ := cmd.Flags().GetBool("save")
			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			if save {
				if _, err := cl.SaveMessage(cmd.Context(), sessionID, chatapi.RoleUser, args[0]); err != nil {
					return err
				}
			}
			out, err := cl.SendGeneralChat(cmd.Context(), args[0], sessionID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("session", "", "session id")
	cmd.Flags().Bool("save", true, "store the query as a user message before asking")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	cmd.AddCommand(sessionsCreateCmd(), sessionsListCmd(), sessionsHistoryCmd(), sessionsDeleteCmd())
	return cmd
}

func sessionsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			mode, _ := cmd.Flags().GetString("mode")
			pdfID, _ := cmd.Flags().GetString("pdf")

			m := chatapi.Mode(mode)
			if m != chatapi.ModeChat && m != chatapi.ModePDF {
				return fmt.Errorf("--mode must be %q or %q", chatapi.ModeChat, chatapi.ModePDF)
			}

			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			out, err := cl.CreateSession(cmd.Context(), name, m, pdfID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("name", "New chat", "session name")
	cmd.Flags().String("mode", string(chatapi.ModeChat), "session mode (chat|pdf)")
	cmd.Flags().String("pdf", "", "PDF id for pdf sessions")
	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			sessions, err := cl.GetSessions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sessions)
		},
	}
}

func sessionsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			msgs, err := cl.GetChatHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msgs)
		},
	}
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			if err := cl.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Manage stored messages",
	}

	save := &cobra.Command{
		Use:   "save <content>",
		Short: "Store a message in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			role, _ := cmd.Flags().GetString("role")

			r := chatapi.Role(role)
			if r != chatapi.RoleUser && r != chatapi.RoleAssistant {
				return fmt.Errorf("--role must be %q or %q", chatapi.RoleUser, chatapi.RoleAssistant)
			}

			cl, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			msg, err := cl.SaveMessage(cmd.Context(), sessionID, r, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msg)
		},
	}
	save.Flags().String("session", "", "session id")
	save.Flags().String("role", string(chatapi.RoleUser), "message role (user|assistant)")
	_ = save.MarkFlagRequired("session")

	cmd.AddCommand(save)
	return cmd
}
