package report

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// configureSecurity configures SASL and TLS settings
func configureSecurity(saramaConfig *sarama.Config, cfg dto.KafkaReportConfig, logger *zap.Logger) error {
	switch cfg.SecurityProtocol {
	case "", "PLAINTEXT":
		logger.Info("Using PLAINTEXT security protocol")

	case "SASL_SSL":
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.TLS.Enable = true

		if err := configureSASL(saramaConfig, cfg, logger); err != nil {
			return err
		}
		if err := configureTLS(saramaConfig, cfg.TLS, logger); err != nil {
			return err
		}

	case "SASL_PLAINTEXT":
		saramaConfig.Net.SASL.Enable = true

		if err := configureSASL(saramaConfig, cfg, logger); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported security protocol: %s", cfg.SecurityProtocol)
	}

	return nil
}

// configureSASL configures SASL authentication
func configureSASL(saramaConfig *sarama.Config, cfg dto.KafkaReportConfig, logger *zap.Logger) error {
	switch cfg.SASLMechanism {
	case "PLAIN":
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		saramaConfig.Net.SASL.User = cfg.SASLUsername
		saramaConfig.Net.SASL.Password = cfg.SASLPassword
		logger.Info("Using SASL PLAIN authentication")

	case "SCRAM-SHA-256":
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		saramaConfig.Net.SASL.User = cfg.SASLUsername
		saramaConfig.Net.SASL.Password = cfg.SASLPassword
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
		}
		logger.Info("Using SASL SCRAM-SHA-256 authentication")

	case "SCRAM-SHA-512":
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		saramaConfig.Net.SASL.User = cfg.SASLUsername
		saramaConfig.Net.SASL.Password = cfg.SASLPassword
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
		}
		logger.Info("Using SASL SCRAM-SHA-512 authentication")

	case "AWS_MSK_IAM":
		if !cfg.AWSMSK.Enabled {
			return fmt.Errorf("AWS MSK IAM authentication requires aws_msk.enabled=true")
		}
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		saramaConfig.Net.SASL.TokenProvider = newMSKTokenProvider(cfg.AWSMSK.Region)
		logger.Info("Using AWS MSK IAM authentication", zap.String("region", cfg.AWSMSK.Region))

	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}

	return nil
}

// configureTLS configures TLS settings
func configureTLS(saramaConfig *sarama.Config, cfg dto.TLSConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Warn("TLS is required for SASL_SSL but not enabled in config")
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return fmt.Errorf("failed to parse CA certificate")
		}

		tlsConfig.RootCAs = caCertPool
		logger.Info("Loaded CA certificate", zap.String("file", cfg.CACertFile))
	}

	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load client certificate: %w", err)
		}

		tlsConfig.Certificates = []tls.Certificate{cert}
		logger.Info("Loaded client certificate",
			zap.String("certFile", cfg.ClientCertFile),
			zap.String("keyFile", cfg.ClientKeyFile),
		)
	}

	saramaConfig.Net.TLS.Config = tlsConfig
	return nil
}

// parseCompressionType parses compression type string
func parseCompressionType(compressionType string) sarama.CompressionCodec {
	switch compressionType {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}

// newMSKTokenProvider creates a token provider for AWS MSK IAM authentication
func newMSKTokenProvider(region string) sarama.AccessTokenProvider {
	return &MSKAccessTokenProvider{region: region}
}

// MSKAccessTokenProvider implements AWS MSK IAM token provider
type MSKAccessTokenProvider struct {
	region string
}

// Token generates a signed MSK IAM auth token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, _, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, err
	}

	return &sarama.AccessToken{Token: token}, nil
}
