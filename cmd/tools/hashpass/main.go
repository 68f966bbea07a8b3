// cmd/tools/hashpass/main.go
//
// hashpass prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH. The
// password is read from stdin so it stays out of shell history.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/api/auth"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && password == "" {
		log.Fatal().Err(err).Msg("Failed to read password")
	}
	password = strings.TrimRight(password, "\r\n")

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	fmt.Println(hash)
}
