// Package config provides configuration helpers for go-luma commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Env returns the value of an environment variable, or the fallback
// if the variable is unset or empty.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvRequired returns the value of an environment variable.
// Exits with a usage message if the variable is unset.
func EnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

// EnvInt returns an integer environment variable, or the fallback if
// the variable is unset or not a valid integer.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// EnvBool returns a boolean environment variable, or the fallback if
// the variable is unset or not parseable.
func EnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// EnvDuration returns a duration environment variable, or the fallback
// if the variable is unset or not parseable.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
