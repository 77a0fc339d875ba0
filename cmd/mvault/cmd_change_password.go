package main

import "fmt"

func cmdChangePassword() {
	oldPw, err := promptPassword("Current master password: ")
	if err != nil {
		fatal("reading password: %v", err)
	}
	newPw, err := promptPassword("New master password: ")
	if err != nil {
		fatal("reading password: %v", err)
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		fatal("reading password: %v", err)
	}
	if newPw != confirm {
		fatal("passwords do not match")
	}
	if len(newPw) < 8 {
		fatal("master password must be at least 8 characters")
	}

	resp, err := apiRequest("PUT", "/vault/master", map[string]string{
		"oldPassword": oldPw,
		"newPassword": newPw,
	})
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
	fmt.Println("Master password changed. The vault is unlocked.")
}
