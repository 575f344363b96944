package common

import (
	"fmt"
	"os"
	"path/filepath"

	"group-wager-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type SeedUser struct {
	Id             string `yaml:"id"`
	Name           string `yaml:"name"`
	Email          string `yaml:"email"`
	OpeningBalance string `yaml:"opening_balance"`
}

type SeedConfig struct {
	Users []SeedUser `yaml:"users"`
}

// LoadSeedUsers reads the users file used by cmd/setup
func LoadSeedUsers(seedFile string) ([]models.CreateUserRequest, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	return ParseSeedUsers(data)
}

func ParseSeedUsers(data []byte) ([]models.CreateUserRequest, error) {
	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse seed users: %w", err)
	}

	requests := make([]models.CreateUserRequest, 0, len(config.Users))
	for i, u := range config.Users {
		if u.Id == "" || u.Name == "" || u.Email == "" {
			return nil, fmt.Errorf("user at index %d needs id, name and email", i)
		}
		opening := decimal.Zero
		if u.OpeningBalance != "" {
			var err error
			if opening, err = decimal.NewFromString(u.OpeningBalance); err != nil {
				return nil, fmt.Errorf("user %s has invalid opening_balance %q: %w", u.Id, u.OpeningBalance, err)
			}
		}
		requests = append(requests, models.CreateUserRequest{
			Id:             u.Id,
			Name:           u.Name,
			Email:          u.Email,
			OpeningBalance: opening,
		})
	}
	return requests, nil
}
