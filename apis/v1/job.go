package v1

type ExtractJob struct {
	Kind     string         `yaml:"kind" json:"kind" validate:"required,eq=ExtractJob"`
	Metadata Metadata       `yaml:"metadata" json:"metadata"`
	Spec     ExtractJobSpec `yaml:"spec" json:"spec" validate:"required"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name"`
}

type ExtractJobSpec struct {
	Scan        ScanSpec         `yaml:"scan" json:"scan" validate:"required"`
	Password    *PasswordSpec    `yaml:"password,omitempty" json:"password,omitempty"`
	Engines     *EnginesSpec     `yaml:"engines,omitempty" json:"engines,omitempty"`
	Consolidate *ConsolidateSpec `yaml:"consolidate,omitempty" json:"consolidate,omitempty"`
}

// ScanSpec configures archive discovery.
type ScanSpec struct {
	// Root is the directory to search for archives.
	Root string `yaml:"root" json:"root" validate:"required"`

	// Recursive enables descending into subdirectories.
	Recursive bool `yaml:"recursive" json:"recursive"`

	// Include restricts discovery to paths matching these glob patterns.
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`

	// Exclude drops paths matching these glob patterns.
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// PasswordSpec configures how encrypted archives are handled.
type PasswordSpec struct {
	// Mode is one of "per-archive", "shared" or "skip" (default: "skip").
	Mode string `yaml:"mode" json:"mode" validate:"omitempty,oneof=per-archive shared skip"`

	// Secret presets the shared password so no prompt is needed.
	// Only meaningful with mode "shared".
	Secret string `yaml:"secret,omitempty" json:"secret,omitempty"`
}

// EnginesSpec configures the extraction engines.
type EnginesSpec struct {
	SevenZip *SevenZipSpec `yaml:"sevenzip,omitempty" json:"sevenzip,omitempty"`
}

// SevenZipSpec configures the external 7-Zip engine.
type SevenZipSpec struct {
	// Binary overrides the 7z executable to invoke. When empty, well-known
	// names are probed on PATH.
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty"`

	// Timeout bounds a single extraction attempt (default: 5m).
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ConsolidateSpec configures the optional post-extraction merge.
type ConsolidateSpec struct {
	// Mode is one of "none", "all" or "selective" (default: "none").
	Mode string `yaml:"mode" json:"mode" validate:"omitempty,oneof=none all selective"`

	// Dir is the merged output directory. Required unless mode is "none".
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Select names the archives to consolidate in selective mode, by path
	// or base name.
	Select []string `yaml:"select,omitempty" json:"select,omitempty"`

	// Expr is a CEL expression over {name, path, format, files, bytes}
	// selecting archives in selective mode. Ignored when Select is set.
	Expr string `yaml:"expr,omitempty" json:"expr,omitempty"`
}
