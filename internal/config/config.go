// Package config holds the server's immutable runtime configuration,
// resolved once at startup and passed down explicitly.
package config

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Course is one course the server accepts sessions for.
type Course struct {
	// Name is the human-readable course title.
	Name string `mapstructure:"name"`
	// Secret is the instructor admin key in plaintext.
	Secret string `mapstructure:"secret"`
	// SecretHash is a bcrypt hash of the admin key; takes precedence
	// over Secret when both are set.
	SecretHash string `mapstructure:"secret_hash"`
}

// VerifySecret checks an admin key against the course secret. Hashed
// secrets use bcrypt; plaintext secrets compare in constant time.
func (c Course) VerifySecret(key string) bool {
	if c.SecretHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(key)) == nil
	}
	if c.Secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(key)) == 1
}

// Config is the resolved server configuration.
type Config struct {
	Addr           string
	DBPath         string
	Courses        map[string]Course
	AuthTTL        time.Duration
	AskTTL         time.Duration
	AskWindow      time.Duration
	ArchiveTTL     time.Duration
	MaxQuestionLen int
	SecureCookies  bool
	LLMURL         string
	LLMKey         string
	LLMModel       string
}

// FromViper builds a Config from resolved flag, environment, and config
// file values, validating the course table.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:           v.GetString("addr"),
		DBPath:         v.GetString("db"),
		AuthTTL:        v.GetDuration("auth-ttl"),
		AskTTL:         v.GetDuration("ask-ttl"),
		AskWindow:      v.GetDuration("ask-window"),
		ArchiveTTL:     v.GetDuration("archive-ttl"),
		MaxQuestionLen: v.GetInt("max-question-len"),
		SecureCookies:  v.GetBool("secure-cookies"),
		LLMURL:         v.GetString("llm-url"),
		LLMKey:         v.GetString("llm-key"),
		LLMModel:       v.GetString("llm-model"),
	}
	if err := v.UnmarshalKey("courses", &cfg.Courses); err != nil {
		return Config{}, fmt.Errorf("parse courses: %w", err)
	}
	if len(cfg.Courses) == 0 {
		return Config{}, fmt.Errorf("no courses configured: add a courses table to the config file")
	}
	for slug, course := range cfg.Courses {
		if course.Secret == "" && course.SecretHash == "" {
			return Config{}, fmt.Errorf("course %q: secret or secret_hash is required", slug)
		}
	}
	return cfg, nil
}

// Course returns the configured course for slug.
func (c Config) Course(slug string) (Course, bool) {
	course, ok := c.Courses[slug]
	return course, ok
}
