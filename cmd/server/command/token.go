package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iliyamo/room-queue/internal/config"
	"github.com/iliyamo/room-queue/internal/utils"
)

// Token mints an access token for local testing and staff tooling.
type Token struct{}

func (cmd Token) Command() *cobra.Command {
	var (
		sub  string
		role string
		ttl  time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "print a signed access token",
		RunE: func(c *cobra.Command, _ []string) error {
			role = strings.ToUpper(strings.TrimSpace(role))
			if role != utils.RoleMember && role != utils.RoleStaff {
				return errors.Errorf("unknown role %q", role)
			}
			tok, err := utils.NewAccessToken(config.JWTSecret(), sub, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), tok.Token)
			return nil
		},
	}
	c.Flags().StringVar(&sub, "sub", "", "token subject (chat user id or staff name)")
	c.Flags().StringVar(&role, "role", utils.RoleMember, "MEMBER or STAFF")
	c.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("sub")
	return c
}
