package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"anonrelay/client"
	"anonrelay/protocol"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Chat through a relay gateway from the terminal",
	Long: `connect opens a line-mode session with a relay running the gateway transport.

  /name args          send a command (/start, /admin)
  !reply <id> <text>  reply to a received message
  !photo <ref> [cap]  send a photo reference (also !video)
  !press <id> <n>     press the n-th button under message id
  anything else       send as text`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().String("addr", "localhost:3215", "gateway address")
	connectCmd.Flags().Int64("id", 0, "identity to authenticate as")
	connectCmd.Flags().String("handle", "", "display handle, e.g. @name")
	connectCmd.MarkFlagRequired("id")
}

func runConnect(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	id, _ := cmd.Flags().GetInt64("id")
	handle, _ := cmd.Flags().GetString("handle")

	buttons := client.NewButtons()
	c := client.NewClient()
	for _, typ := range []string{client.TypeMsg, client.TypeBtn, client.TypeKb, client.TypeDel,
		client.TypeEdit, client.TypeAns, client.TypeFail, client.TypeBye} {
		c.OnPacket(typ, func(pkt *protocol.Packet) {
			switch pkt.Type {
			case client.TypeBtn:
				if msgID, err := strconv.Atoi(pkt.Field(0)); err == nil {
					n := buttons.Add(msgID, pkt.Field(2))
					fmt.Printf("    [%d] %d) %s\n", msgID, n, pkt.Field(1))
					return
				}
			case client.TypeDel:
				if msgID, err := strconv.Atoi(pkt.Field(0)); err == nil {
					buttons.Forget(msgID)
				}
			}
			if out, ok := client.Render(pkt); ok {
				fmt.Println(out)
			}
		})
	}

	if err := c.Connect(addr, 30*time.Second); err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer c.Disconnect()
	if err := c.Auth(id, handle); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-c.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			typ, fields, err := client.Translate(line, buttons)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if err := c.Send(typ, fields...); err != nil {
				return err
			}
		}
	}
}
