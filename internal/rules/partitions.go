// internal/rules/partitions.go
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"sigs.k8s.io/yaml"
)

/*
 * Partition metadata for aws.partition.
 *
 * Metadata is loaded once before the first evaluation and is read-only
 * afterwards. Lookup order for a region:
 *   1. exact match in a partition's region list (region overrides applied)
 *   2. match of a partition's regionRegex
 *   3. the "aws" partition
 *
 * The loader accepts JSON or YAML documents of the same shape.
 */

//go:embed data/partitions.json
var defaultPartitions []byte

// PartitionOutputs are the record fields returned by aws.partition.
type PartitionOutputs struct {
	Name                 string `json:"name"`
	DNSSuffix            string `json:"dnsSuffix"`
	DualStackDNSSuffix   string `json:"dualStackDnsSuffix"`
	SupportsFIPS         bool   `json:"supportsFIPS"`
	SupportsDualStack    bool   `json:"supportsDualStack"`
	ImplicitGlobalRegion string `json:"implicitGlobalRegion"`
}

// regionOverride holds per-region output overrides.
type regionOverride struct {
	DNSSuffix          *string `json:"dnsSuffix,omitempty"`
	DualStackDNSSuffix *string `json:"dualStackDnsSuffix,omitempty"`
	SupportsFIPS       *bool   `json:"supportsFIPS,omitempty"`
	SupportsDualStack  *bool   `json:"supportsDualStack,omitempty"`
}

type partitionDef struct {
	ID          string                    `json:"id"`
	RegionRegex string                    `json:"regionRegex"`
	Outputs     PartitionOutputs          `json:"outputs"`
	Regions     map[string]regionOverride `json:"regions"`

	regex *regexp.Regexp
}

type partitionsFile struct {
	Version    string         `json:"version"`
	Partitions []partitionDef `json:"partitions"`
}

// Partitions is the loaded partition table.
type Partitions struct {
	version    string
	partitions []partitionDef
}

// DefaultPartitions returns the embedded partition table.
func DefaultPartitions() *Partitions {
	p, err := ParsePartitions(defaultPartitions)
	if err != nil {
		panic("rules: embedded partitions: " + err.Error())
	}
	return p
}

// LoadPartitions reads a partition table from path; an empty path returns the
// embedded table.
func LoadPartitions(path string) (*Partitions, error) {
	if path == "" {
		return DefaultPartitions(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partitions file: %w", err)
	}
	return ParsePartitions(data)
}

// ParsePartitions decodes a JSON or YAML partition table.
func ParsePartitions(data []byte) (*Partitions, error) {
	var f partitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode partitions: %w", err)
	}
	if len(f.Partitions) == 0 {
		return nil, fmt.Errorf("decode partitions: no partitions defined")
	}
	for i := range f.Partitions {
		def := &f.Partitions[i]
		if def.ID == "" {
			return nil, fmt.Errorf("decode partitions: partition %d has no id", i)
		}
		re, err := regexp.Compile(def.RegionRegex)
		if err != nil {
			return nil, fmt.Errorf("partition %s: region regex: %w", def.ID, err)
		}
		def.regex = re
		if def.Outputs.Name == "" {
			def.Outputs.Name = def.ID
		}
	}
	return &Partitions{version: f.Version, partitions: f.Partitions}, nil
}

// Version returns the table's version string.
func (p *Partitions) Version() string { return p.version }

// Lookup returns the Partition record for region.
func (p *Partitions) Lookup(region string) *Record {
	for i := range p.partitions {
		def := &p.partitions[i]
		if override, ok := def.Regions[region]; ok {
			return partitionRecord(def.Outputs, &override)
		}
	}
	for i := range p.partitions {
		def := &p.partitions[i]
		if def.regex.MatchString(region) {
			return partitionRecord(def.Outputs, nil)
		}
	}
	for i := range p.partitions {
		if p.partitions[i].ID == "aws" {
			return partitionRecord(p.partitions[i].Outputs, nil)
		}
	}
	return partitionRecord(p.partitions[0].Outputs, nil)
}

func partitionRecord(out PartitionOutputs, override *regionOverride) *Record {
	if override != nil {
		if override.DNSSuffix != nil {
			out.DNSSuffix = *override.DNSSuffix
		}
		if override.DualStackDNSSuffix != nil {
			out.DualStackDNSSuffix = *override.DualStackDNSSuffix
		}
		if override.SupportsFIPS != nil {
			out.SupportsFIPS = *override.SupportsFIPS
		}
		if override.SupportsDualStack != nil {
			out.SupportsDualStack = *override.SupportsDualStack
		}
	}
	return NewRecord(TypePartition,
		RecordField{"name", out.Name},
		RecordField{"dnsSuffix", out.DNSSuffix},
		RecordField{"dualStackDnsSuffix", out.DualStackDNSSuffix},
		RecordField{"supportsFIPS", out.SupportsFIPS},
		RecordField{"supportsDualStack", out.SupportsDualStack},
		RecordField{"implicitGlobalRegion", out.ImplicitGlobalRegion},
	)
}
