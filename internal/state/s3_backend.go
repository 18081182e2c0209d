package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/picklr-io/anfctl/internal/ir"
)

const defaultS3Key = "anfctl/ledger.yaml"

type objectStore interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type lockTable interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// s3Backend keeps the ledger in an S3 object with optional DynamoDB locking.
type s3Backend struct {
	bucket     string
	key        string
	region     string
	lockTable  string
	encrypt    bool
	profile    string
	passphrase string

	objects objectStore
	locks   lockTable
	lockID  string
}

func parseS3Config(config map[string]string) (*s3Backend, error) {
	bucket := config["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	b := &s3Backend{
		bucket:    bucket,
		key:       config["key"],
		region:    config["region"],
		lockTable: config["lock_table"],
		encrypt:   config["encrypt"] == "true",
		profile:   config["profile"],
	}
	if b.key == "" {
		b.key = defaultS3Key
	}
	if b.region == "" {
		b.region = "us-east-1"
	}
	return b, nil
}

func newS3Backend(ctx context.Context, config map[string]string, passphrase string) (Backend, error) {
	b, err := parseS3Config(config)
	if err != nil {
		return nil, err
	}
	b.passphrase = passphrase

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(b.region)}
	if b.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	b.objects = s3.NewFromConfig(cfg)
	if b.lockTable != "" {
		b.locks = dynamodb.NewFromConfig(cfg)
	}
	return b, nil
}

func (b *s3Backend) Read(ctx context.Context) (*ir.Ledger, error) {
	result, err := b.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isMissingObject(err) {
			return &ir.Ledger{Version: 1}, nil
		}
		return nil, fmt.Errorf("failed to read ledger from s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	ledger, err := Unmarshal(content, b.passphrase)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", b.bucket, b.key, err)
	}
	return ledger, nil
}

func (b *s3Backend) Write(ctx context.Context, ledger *ir.Ledger) error {
	data, err := Marshal(ledger, b.passphrase)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/yaml"),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := b.objects.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to write ledger to s3://%s/%s: %w", b.bucket, b.key, err)
	}
	return nil
}

func (b *s3Backend) Lock() error {
	if b.locks == nil {
		return nil
	}

	b.lockID = fmt.Sprintf("anfctl-%d-%d", os.Getpid(), time.Now().UnixNano())
	_, err := b.locks.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(b.lockTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: b.key},
			"Info":    &dbtypes.AttributeValueMemberS{Value: b.lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		var conflict *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return fmt.Errorf("%w; delete the item with LockID=%q from DynamoDB table %q if no other run is active",
				ErrLocked, b.key, b.lockTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (b *s3Backend) Unlock() error {
	if b.locks == nil {
		return nil
	}

	_, err := b.locks.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(b.lockTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: b.key},
		},
		ConditionExpression:       aws.String("Info = :id"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{":id": &dbtypes.AttributeValueMemberS{Value: b.lockID}},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func isMissingObject(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
