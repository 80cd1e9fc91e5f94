// Package archive sube exportaciones del ledger a un bucket compatible con S3 (AWS o MinIO)
// para auditoría. Los objetos son de solo creación: una clave existente no se sobrescribe.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
)

// ErrExists la clave ya existe en el bucket.
var ErrExists = errors.New("el objeto ya existe en el archivo")

// Config parámetros del bucket de archivo.
type Config struct {
	Bucket    string
	Region    string // vacío = us-east-1
	Endpoint  string // opcional, para MinIO
	Prefix    string // prefijo de las claves, ej. "ledger"
	PathStyle bool
}

// S3Archive almacén de exportaciones del ledger.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// New crea el archivo con la cadena de credenciales por defecto de AWS.
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket de archivo requerido")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("cargar configuración aws: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient usa un cliente ya construido.
func NewWithClient(client *s3.Client, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// KeyFor clave de una exportación: <prefijo>/AAAA/MM/DD/<departamento|ALL>-<AAAAMMDDTHHMMSSZ>.json
func (a *S3Archive) KeyFor(export *dto.LedgerExport) string {
	ts := export.GeneratedAt.UTC()
	dept := export.Department
	if dept == "" {
		dept = "ALL"
	}
	name := fmt.Sprintf("%s-%s.json", dept, ts.Format("20060102T150405Z"))
	return path.Join(a.prefix, ts.Format("2006/01/02"), name)
}

// Put sube la exportación como JSON y devuelve la clave usada. ErrExists si la clave ya existe.
func (a *S3Archive) Put(ctx context.Context, export *dto.LedgerExport) (string, error) {
	body, err := json.Marshal(export)
	if err != nil {
		return "", fmt.Errorf("serializar exportación: %w", err)
	}
	key := a.KeyFor(export)

	_, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &a.bucket, Key: &key})
	if err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, key)
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return "", fmt.Errorf("consultar %s: %w", key, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"entries":      fmt.Sprint(export.Entries),
			"generated-at": export.GeneratedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("subir %s: %w", key, err)
	}
	return key, nil
}

// Get descarga una exportación por clave.
func (a *S3Archive) Get(ctx context.Context, key string) (*dto.LedgerExport, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("descargar %s: %w", key, err)
	}
	defer out.Body.Close()
	var export dto.LedgerExport
	if err := json.NewDecoder(out.Body).Decode(&export); err != nil {
		return nil, fmt.Errorf("decodificar %s: %w", key, err)
	}
	return &export, nil
}
