package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemakit/schemakit/internal/cache"
	"github.com/schemakit/schemakit/internal/schema"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared schema cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [model...]",
	Short: "Clear cached schema documents",
	Long:  "Remove cached documents from the shared cache tier. With no arguments, everything under the configured prefix is cleared. Arguments may be connection-qualified, e.g. users@analytics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Cache.Enabled {
			return fmt.Errorf("shared cache is not enabled in configuration")
		}

		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Config: cache.Config{
				Prefix: cfg.Cache.Prefix,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to connect to cache: %w", err)
		}
		defer c.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		green := color.New(color.FgGreen)
		if len(args) == 0 {
			if err := c.Clear(ctx); err != nil {
				return err
			}
			green.Println("✓ cleared all cached documents")
			return nil
		}

		for _, arg := range args {
			parsed, err := schema.ParseReference(arg)
			if err != nil {
				return err
			}
			if err := c.Delete(ctx, parsed.Key()); err != nil {
				return fmt.Errorf("failed to clear %s: %w", arg, err)
			}
			green.Printf("✓ cleared %s\n", arg)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
