// Package pgtest создаёт временные базы PostgreSQL для интеграционных тестов.
package pgtest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// EnvDSN — переменная окружения с адресом тестового сервера PostgreSQL.
const EnvDSN = "TEST_DATABASE_URI"

// NewDatabase создаёт отдельную базу для теста и возвращает её DSN. База удаляется
// по завершении теста. Если TEST_DATABASE_URI не задан, тест пропускается.
func NewDatabase(t *testing.T) string {
	t.Helper()

	baseDSN := os.Getenv(EnvDSN)
	if baseDSN == "" {
		t.Skipf("%s is not set", EnvDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := pgx.Connect(ctx, baseDSN)
	if err != nil {
		t.Fatalf("connect admin: %v", err)
	}

	dbName := sanitizeIdent(uniqueName("starsky", t.Name()))
	if _, err := admin.Exec(ctx, fmt.Sprintf(`CREATE DATABASE "%s" WITH TEMPLATE template0 ENCODING 'UTF8'`, dbName)); err != nil {
		_ = admin.Close(ctx)
		t.Fatalf("create database: %v", err)
	}

	dsn, err := replaceDatabase(baseDSN, dbName)
	if err != nil {
		_ = admin.Close(ctx)
		t.Fatalf("test dsn: %v", err)
	}

	t.Cleanup(func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()

		_, _ = admin.Exec(dctx, fmt.Sprintf(`DROP DATABASE IF EXISTS "%s" WITH (FORCE)`, dbName))
		_ = admin.Close(dctx)
	})

	return dsn
}

func replaceDatabase(dsn, name string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}

func uniqueName(prefix, testName string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(testName))
	var rnd [6]byte
	_, _ = rand.Read(rnd[:])
	return fmt.Sprintf("%s_%08x_%s", prefix, h.Sum32(), hex.EncodeToString(rnd[:]))
}

func sanitizeIdent(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(s)
	if len(s) <= 63 {
		return s
	}
	return s[:31] + "_" + s[len(s)-31:]
}
