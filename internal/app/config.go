package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type GSheetConfig struct {
	CredentialsPath  string `toml:"credentials_path"`
	SheetID          string `toml:"sheet_id"`
	SheetName        string `toml:"sheet_name"`
	StudentsRange    string `toml:"students_range"`
	GradesColumn     string `toml:"grades_column"`
	TimestampRange   string `toml:"timestamp_range"`
	StudentsStartRow int    `toml:"students_start_row"`
	Schedule         string `toml:"schedule"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL         string `toml:"redis_url"`
		TokenHeader      string `toml:"token_header"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`

	API struct {
		IdentityHeader  string         `toml:"identity_header"`
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Workflow struct {
		MinApprovals    int  `toml:"min_approvals"`
		SingleResit     bool `toml:"single_resit"`
		MaxReasonLength int  `toml:"max_reason_length"`
		MaxNoteLength   int  `toml:"max_note_length"`
	} `toml:"workflow"`

	Roles struct {
		Authority string   `toml:"authority"`
		Teachers  []string `toml:"teachers"`
		Approvers []string `toml:"approvers"`
	} `toml:"roles"`

	Display struct {
		TimestampFormat string `toml:"timestamp_format"`
	} `toml:"display"`

	EmojiVariants []string `toml:"emoji_variants"`

	GSheet []GSheetConfig `toml:"gsheet"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if config.Roles.Authority == "" {
		return nil, fmt.Errorf("roles.authority is not specified in config, the workflow needs exactly one authority identity")
	}
	if config.Workflow.MinApprovals < 1 {
		return nil, fmt.Errorf("workflow.min_approvals must be at least 1, got %d", config.Workflow.MinApprovals)
	}

	if config.API.IdentityHeader == "" {
		config.API.IdentityHeader = "X-Identity"
	}
	if config.Display.TimestampFormat == "" {
		config.Display.TimestampFormat = "2006-01-02 15:04:05"
	}

	logger.Debug.Printf("Loaded workflow config: %+v", config.Workflow)

	return &config, nil
}
