package catalog

// Package catalog provides catalog seed file parsing.

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document consumed by cmd/seed.
type SeedFile struct {
	Store    StoreConfig     `yaml:"store"`
	Products []ProductConfig `yaml:"products" validate:"required,min=1,dive"`
}

type StoreConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Currency string `yaml:"currency" validate:"required"`
}

// ProductConfig keeps prices as strings so they are never routed through
// float64 on their way to decimal.
type ProductConfig struct {
	ID                 int64  `yaml:"id" validate:"gt=0"`
	Name               string `yaml:"name" validate:"required"`
	ListPrice          string `yaml:"list_price" validate:"required"`
	WholesalePrice     string `yaml:"wholesale_price" validate:"required_unless=WholesaleThreshold 0"`
	WholesaleThreshold int    `yaml:"wholesale_threshold" validate:"gte=0"`
	Active             bool   `yaml:"active"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*SeedFile, error) {
	var file SeedFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &file, nil
}

func (p *Parser) ParseFromString(content string) (*SeedFile, error) {
	return p.Parse([]byte(content))
}
