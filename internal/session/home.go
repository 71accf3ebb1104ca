package session

import (
	"fmt"

	"github.com/tOgg1/ostruka/internal/instance"
)

// NewStore builds a conversation store whose home page greets user.
func NewStore(homeName, user string) *instance.Instance {
	if homeName == "" {
		homeName = "ostruka"
	}
	return instance.New(instance.NewPage(homeName, welcomeLines(user)...))
}

func welcomeLines(user string) []string {
	return []string{
		fmt.Sprintf("Welcome, %s!", user),
		"This page is local only. Messages typed here are not sent.",
		"  :join <user>|#<group>  open a conversation",
		"  :<n>                   switch to page n",
		"  :q, :close             close the current page",
		"  :exit                  quit",
		"  tab next page, pgup/pgdown scroll",
	}
}
