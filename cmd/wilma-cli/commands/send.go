package commands

import (
	"fmt"
	"wilma-backend/cmd/wilma-cli/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var sendTo *string
var sendToId *string
var sendSubject *string
var sendBody *string
var replyBody *string

func init() {
	sendTo = sendCmd.Flags().String("to", "", "Recipient display name, resolved fuzzily against the portal's recipient list.")
	sendToId = sendCmd.Flags().String("to-id", "", "Recipient id, skips name resolution.")
	sendSubject = sendCmd.Flags().String("subject", "", "Message subject.")
	sendBody = sendCmd.Flags().String("body", "", "Message body.")
	replyBody = replyCmd.Flags().String("body", "", "Reply body.")

	rootCmd.AddCommand(recipientsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(replyCmd)
}

var recipientsCmd = &cobra.Command{
	Use:   "recipients",
	Short: "Lists the people messages can be addressed to.",
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()

		recipients, err := service.Recipients(cmd.Context())
		if err != nil {
			fatal("failed to fetch recipients", err)
		}
		if len(recipients) == 0 {
			fmt.Println("the portal exposes no recipients, it may load them dynamically")
			return
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Id", "Name", "Role"})
		for _, recipient := range recipients {
			t.AppendRow(table.Row{recipient.Id, recipient.Name, recipient.Role})
		}
		t.Render()
	},
}

var sendCmd = &cobra.Command{
	Use:   "send --to <name> --subject <subject> --body <body>",
	Short: "Sends a message.",
	Run: func(cmd *cobra.Command, args []string) {
		if *sendTo == "" && *sendToId == "" {
			fatal("missing recipient", fmt.Errorf("one of --to or --to-id is required"))
		}
		if *sendBody == "" {
			fatal("missing body", fmt.Errorf("--body is required"))
		}
		service := createService()

		recipientId := *sendToId
		if recipientId == "" {
			recipient, err := service.ResolveRecipient(cmd.Context(), *sendTo)
			if err != nil {
				fatal("failed to resolve recipient", err)
			}
			fmt.Printf("sending to %s (%s)\n", recipient.Name, recipient.Id)
			recipientId = recipient.Id
		}

		err := service.SendMessage(cmd.Context(), []string{recipientId}, *sendSubject, *sendBody)
		if err != nil {
			fatal("failed to send message", err)
		}
		fmt.Println("sent")
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <id> --body <body>",
	Short: "Replies to a message, recipients are taken from the original.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if *replyBody == "" {
			fatal("missing body", fmt.Errorf("--body is required"))
		}
		service := createService()

		err := service.ReplyToMessage(cmd.Context(), args[0], *replyBody)
		if err != nil {
			fatal("failed to send reply", err)
		}
		fmt.Println("sent")
	},
}
