package commands

import (
	"fmt"
	"strings"
	"wilma-backend/cmd/wilma-cli/utils"

	scraper "wilma-backend/lib/scrapers/wilma"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var messagesFolder *string
var messagesLimit *int
var archivedFolder *string

func init() {
	messagesFolder = messagesCmd.Flags().String("folder", "inbox", "Folder to list: inbox, sent or archive.")
	messagesLimit = messagesCmd.Flags().Int("limit", 20, "Maximum amount of messages to list.")
	archivedFolder = archivedCmd.Flags().String("folder", "inbox", "Folder to list: inbox, sent or archive.")

	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(messageCmd)
	rootCmd.AddCommand(archivedCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages [--folder <inbox|sent|archive>] [--limit <n>]",
	Short: "Lists the newest messages of a folder.",
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()

		messages, err := service.Messages(cmd.Context(), scraper.Folder(*messagesFolder), *messagesLimit)
		if err != nil {
			fatal("failed to fetch messages", err)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Id", "Status", "Sent", "Sender", "Subject"})
		for _, message := range messages {
			status := "unread"
			if message.IsRead {
				status = "read"
			}
			t.AppendRow(table.Row{
				message.Id,
				status,
				message.Timestamp.Format("02.01.2006 15:04"),
				message.Sender,
				message.Subject,
			})
		}
		t.Render()
	},
}

var messageCmd = &cobra.Command{
	Use:   "message <id>",
	Short: "Shows a single message in full.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()

		message, err := service.GetMessage(cmd.Context(), args[0])
		if err != nil {
			fatal("failed to fetch message", err)
		}
		renderMessage(message)
	},
}

var archivedCmd = &cobra.Command{
	Use:   "archived [--folder <inbox|sent|archive>]",
	Short: "Lists messages previously archived with --archive-db.",
	Run: func(cmd *cobra.Command, args []string) {
		if *archiveDb == "" {
			fmt.Println("no --archive-db given, nothing to list")
			return
		}
		service := createService()

		messages, err := service.ArchivedMessages(cmd.Context(), scraper.Folder(*archivedFolder), 0)
		if err != nil {
			fatal("failed to list archived messages", err)
		}
		for _, message := range messages {
			renderMessage(message)
			fmt.Println()
		}
	},
}

func renderMessage(message scraper.Message) {
	fmt.Printf("Subject: %s\n", message.Subject)
	fmt.Printf("From:    %s\n", message.Sender)
	fmt.Printf("Sent:    %s\n", message.Timestamp.Format("02.01.2006 15:04"))
	if len(message.Recipients) > 0 {
		fmt.Printf("To:      %s\n", strings.Join(message.Recipients, ", "))
	}
	if len(message.Attachments) > 0 {
		fmt.Printf("Files:   %s\n", strings.Join(message.Attachments, ", "))
	}
	fmt.Println()
	fmt.Println(message.Content)
}
