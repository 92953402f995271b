// Command tokengen выпускает подписанный access токен для оператора или локальной проверки API.
//
//	go run ./cmd/tokengen -role admin
//	go run ./cmd/tokengen -user 7d9f... -role system -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/config"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/service"
)

func main() {
	userFlag := flag.String("user", "", "UUID пользователя (по умолчанию случайный)")
	roleFlag := flag.String("role", models.RoleUser, "роль: user, admin, mediator, system")
	ttlFlag := flag.Duration("ttl", 0, "время жизни токена (по умолчанию ACCESS_TOKEN_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("tokengen: ошибка загрузки конфигурации: %v", err)
	}

	if _, ok := models.ValidRoles[*roleFlag]; !ok {
		log.Fatalf("tokengen: неизвестная роль %q", *roleFlag)
	}

	userID := uuid.New()
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			log.Fatalf("tokengen: некорректный UUID пользователя: %v", err)
		}
	}

	ttl := cfg.AccessTokenTTL
	if *ttlFlag > 0 {
		ttl = *ttlFlag
	}

	token, expiresAt, err := service.NewTokenManager(cfg.JWTSecret, ttl).GenerateAccess(userID, *roleFlag)
	if err != nil {
		log.Fatalf("tokengen: не удалось подписать токен: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user_id=%s role=%s expires_at=%s\n", userID, *roleFlag, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
