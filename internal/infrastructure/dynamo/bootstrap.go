package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-email-otp/internal/config"
	"github.com/sirupsen/logrus"
)

// Bootstrap creates all DynamoDB tables and GSIs if they don't already exist.
// Safe to call on every startup; it skips tables that already exist.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables, logger logrus.FieldLogger) {
	for _, input := range tableDefinitions(tables) {
		createTable(ctx, client, input, logger)
	}
	enableTTL(ctx, client, tables.OTPs, "expires_at", logger)
}

func tableDefinitions(tables config.DynamoTables) []*dynamodb.CreateTableInput {
	return []*dynamodb.CreateTableInput{
		{
			TableName:   aws.String(tables.Users),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(keyUserID), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(keyEmail), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(keyUserID), KeyType: types.KeyTypeHash},
			},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				gsi(indexEmail, keyEmail, ""),
			},
		},
		{
			TableName:   aws.String(tables.Sessions),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(keySessionID), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(keyUserID), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(fieldRefreshToken), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(keySessionID), KeyType: types.KeyTypeHash},
			},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				gsi(indexUserID, keyUserID, ""),
				gsi(indexRefreshToken, fieldRefreshToken, ""),
			},
		},
		{
			TableName:   aws.String(tables.OTPs),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(keyEmail), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(keyPurpose), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(keyEmail), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(keyPurpose), KeyType: types.KeyTypeRange},
			},
		},
	}
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput, logger logrus.FieldLogger) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			logger.WithError(err).WithField("table", *input.TableName).Warn("could not create table")
		}
		return
	}
	logger.WithField("table", *input.TableName).Info("created table")
}

func enableTTL(ctx context.Context, client *dynamodb.Client, tableName, ttlAttr string, logger logrus.FieldLogger) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		logger.WithError(err).WithField("table", tableName).Warn("could not enable TTL")
	}
}
