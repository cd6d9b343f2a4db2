package ddo

import (
	"embed"
	"io/fs"
	"os"

	"github.com/Conflux-Chain/go-conflux-util/viper"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CurrentVersion is the schema version of documents without explicit version.
const CurrentVersion = "4.5.0"

var (
	// AllowedVersions lists schema versions documents can be validated against.
	AllowedVersions = []string{"4.1.0", "4.3.0", "4.5.0"}

	// ErrUnknownSchemaVersion is returned when resolving a version outside AllowedVersions.
	ErrUnknownSchemaVersion = errors.New("unknown schema version")
)

//go:embed schemas/*.ttl
var embeddedSchemas embed.FS

// IsAllowedVersion checks if the schema version is supported.
func IsAllowedVersion(version string) bool {
	for _, v := range AllowedVersions {
		if v == version {
			return true
		}
	}

	return false
}

type schemaConfig struct {
	// Directory of schema files, embedded schemas are used if empty.
	SchemaDir string
	// Number of compiled schemas kept in memory.
	SchemaCacheSize int `default:"8"`
}

// SchemaRegistry resolves compiled shapes graphs by version, backed by
// `<version>.ttl` files in a file system.
type SchemaRegistry struct {
	fsys   fs.FS
	cache  *lru.Cache
	logger logrus.FieldLogger
}

// MustNewSchemaRegistryFromViper creates a registry with configuration under `ddo`.
func MustNewSchemaRegistryFromViper(logger logrus.FieldLogger) *SchemaRegistry {
	var conf schemaConfig
	viper.MustUnmarshalKey("ddo", &conf)

	var fsys fs.FS = EmbeddedSchemas()
	if len(conf.SchemaDir) > 0 {
		fsys = os.DirFS(conf.SchemaDir)
	}

	registry, err := NewSchemaRegistry(fsys, conf.SchemaCacheSize, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create schema registry")
	}

	return registry
}

// EmbeddedSchemas returns the schema files shipped with the binary.
func EmbeddedSchemas() fs.FS {
	sub, err := fs.Sub(embeddedSchemas, "schemas")
	if err != nil {
		panic(err)
	}

	return sub
}

func NewSchemaRegistry(fsys fs.FS, cacheSize int, logger logrus.FieldLogger) (*SchemaRegistry, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema cache")
	}

	return &SchemaRegistry{fsys: fsys, cache: cache, logger: logger}, nil
}

// Resolve returns the compiled shapes graph of the schema version.
func (r *SchemaRegistry) Resolve(version string) (*ShapesGraph, error) {
	if !IsAllowedVersion(version) {
		r.logger.WithField("version", version).Info("Can't find schema")
		return nil, errors.WithMessagef(ErrUnknownSchemaVersion, "%q", version)
	}

	if v, ok := r.cache.Get(version); ok {
		return v.(*ShapesGraph), nil
	}

	f, err := r.fsys.Open(version + ".ttl")
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to open schema %v", version)
	}
	defer f.Close()

	sg, err := ParseShapes(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to parse schema %v", version)
	}

	r.cache.Add(version, sg)
	r.logger.WithFields(logrus.Fields{
		"version": version,
		"shapes":  sg.Len(),
	}).Debug("Schema loaded")

	return sg, nil
}
