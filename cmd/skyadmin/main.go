// Package main запускает административную утилиту skyadmin.
package main

import (
	"github.com/mmeshcher/starsky/internal/cli"
	"github.com/mmeshcher/starsky/internal/repository"
)

func main() {
	cli.Execute(func(dsn string) (cli.Store, error) {
		repo, err := repository.NewPostgresRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	})
}
