package config

// File represents the structure of the pipecache.yaml configuration file.
type File struct {
	Version     string `yaml:"version"`
	Store       string `yaml:"store"`
	Log         string `yaml:"log"`
	Parallelism int    `yaml:"parallelism"`
}
