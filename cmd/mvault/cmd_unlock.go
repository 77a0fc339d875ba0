package main

import "fmt"

func cmdUnlock() {
	pw, err := promptPassword("Master password: ")
	if err != nil {
		fatal("reading password: %v", err)
	}

	resp, err := apiRequest("POST", "/vault/unlock", map[string]string{"password": pw})
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := apiResult(resp, &out); err != nil {
		fatal("%v", err)
	}

	saveToken(out.Token)
	fmt.Println("Vault unlocked.")
}

func cmdLock() {
	resp, err := apiRequest("POST", "/vault/lock", nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	if err := apiResult(resp, nil); err != nil {
		fatal("%v", err)
	}
	removeToken()
	fmt.Println("Vault locked.")
}
