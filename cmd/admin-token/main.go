// Command admin-token mints a short-lived operator JWT for the admin routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/printshop-backend/pkg/auth"
	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

func main() {
	var (
		subject = flag.String("subject", "", "operator identifier recorded on admin actions")
		role    = flag.String("role", string(enums.OperatorRoleOperator), "operator or viewer")
		ttl     = flag.Duration("ttl", 0, "token lifetime; defaults to PRINTSHOP_JWT_EXPIRATION_MINUTES")
	)
	flag.Parse()

	_ = godotenv.Load()

	// only the jwt block is needed to mint
	var jwtCfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
		exitf("parsing jwt config: %v", err)
	}

	parsedRole, err := enums.ParseOperatorRole(*role)
	if err != nil {
		exitf("%v", err)
	}

	payload := auth.OperatorTokenPayload{Subject: *subject, Role: parsedRole}
	var token string
	if *ttl > 0 {
		token, err = auth.MintOperatorTokenWithTTL(jwtCfg, time.Now(), *ttl, payload)
	} else {
		token, err = auth.MintOperatorToken(jwtCfg, time.Now(), payload)
	}
	if err != nil {
		exitf("mint token: %v", err)
	}
	fmt.Println(token)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "admin-token: "+format+"\n", args...)
	os.Exit(1)
}
