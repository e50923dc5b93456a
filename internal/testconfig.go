package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/viper"
)

// Config holds the settings of the integration tests, which run against
// localstack and a Postgres instance.
type Config struct {
	Aws struct {
		Region       string
		AccessKey    string `mapstructure:"access_key"`
		AccessSecret string `mapstructure:"access_secret"`

		DynamoDb struct {
			Endpoint  string
			TableName string `mapstructure:"table_name"`
		}

		Sqs struct {
			Endpoint string
		}
	}
	Postgres struct {
		ConnectionString string `mapstructure:"connection_string"`
	}
	Failures struct {
		QueueNames []string `mapstructure:"queue_names"`
	}
}

var TestConfig Config

func init() {
	v := viper.New()
	v.SetEnvPrefix("sensor_test")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigName("testconfig")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("internal")
	v.AddConfigPath("../internal")
	v.AddConfigPath("../../internal")

	v.SetDefault("aws.region", "eu-west-1")
	v.SetDefault("aws.access_key", "test")
	v.SetDefault("aws.access_secret", "test")
	v.SetDefault("aws.dynamodb.endpoint", "")
	v.SetDefault("aws.dynamodb.table_name", "SensorDataTest")
	v.SetDefault("aws.sqs.endpoint", "")
	v.SetDefault("postgres.connection_string", "")
	v.SetDefault("failures.queue_names", []string{})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	if err := v.Unmarshal(&TestConfig); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// AwsSession returns a session for endpoint with the static test credentials.
func AwsSession(endpoint string) *session.Session {
	return session.Must(session.NewSession(&aws.Config{
		Endpoint:    aws.String(endpoint),
		Region:      aws.String(TestConfig.Aws.Region),
		Credentials: credentials.NewStaticCredentials("default", TestConfig.Aws.AccessKey, TestConfig.Aws.AccessSecret),
	}))
}
