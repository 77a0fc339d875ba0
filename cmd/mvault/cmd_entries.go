package main

import (
	"fmt"
	"os"
	"time"
)

type entryMeta struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	SignonRealm string    `json:"signonRealm"`
	Username    string    `json:"username"`
	Notes       string    `json:"notes,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UseCount    int       `json:"useCount"`
}

func cmdList() {
	resp, err := apiRequest("GET", "/entries", nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var metas []entryMeta
	if err := apiResult(resp, &metas); err != nil {
		fatal("%v", err)
	}

	if len(metas) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, m := range metas {
		fmt.Printf("%s  %-40s %s\n", m.ID, m.Origin, m.Username)
	}
}

func cmdGet() {
	if len(os.Args) < 3 {
		fatal("usage: mvault get <id>")
	}
	id := os.Args[2]

	resp, err := apiRequest("GET", "/entries/"+id+"/secret", nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var secret struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := apiResult(resp, &secret); err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Username: %s\n", secret.Username)
	fmt.Printf("Password: %s\n", secret.Password)
}

func cmdAdd() {
	if len(os.Args) < 4 {
		fatal("usage: mvault add <url> <username>")
	}
	origin, username := os.Args[2], os.Args[3]

	pw, err := promptPassword("Password for " + username + ": ")
	if err != nil {
		fatal("reading password: %v", err)
	}

	resp, err := apiRequest("POST", "/entries", map[string]string{
		"origin":   origin,
		"username": username,
		"password": pw,
	})
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var res struct {
		ID      string `json:"id"`
		Updated bool   `json:"updated"`
	}
	if err := apiResult(resp, &res); err != nil {
		fatal("%v", err)
	}

	if res.Updated {
		fmt.Printf("Updated entry %s\n", res.ID)
	} else {
		fmt.Printf("Added entry %s\n", res.ID)
	}
}

func cmdRemove() {
	if len(os.Args) < 3 {
		fatal("usage: mvault remove <id>")
	}
	resp, err := apiRequest("DELETE", "/entries/"+os.Args[2], nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	if err := apiResult(resp, nil); err != nil {
		fatal("%v", err)
	}
	fmt.Println("Removed.")
}
