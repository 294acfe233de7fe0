package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-email-otp/internal/domain"
)

// OTPRepo stores one-time passwords.
// PK: email, SK: purpose. Expired rows are reaped by the expires_at TTL;
// callers still check expiry because TTL deletion is lazy.
type OTPRepo struct {
	client    otpAPI
	tableName string
}

// otpAPI is the subset of the DynamoDB client the OTP repo calls.
type otpAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func otpKey(email string, purpose domain.OTPPurpose) map[string]types.AttributeValue {
	return compositeKey(keyEmail, email, keyPurpose, string(purpose))
}

func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRepo) Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            otpKey(email, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("otp")
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DecrementAttempts takes one attempt in a single conditional update.
// Returns -1 when the record exists but has no attempts left.
func (r *OTPRepo) DecrementAttempts(ctx context.Context, email string, purpose domain.OTPPurpose) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      otpKey(email, purpose),
		UpdateExpression:         aws.String("SET #a = #a - :one"),
		ConditionExpression:      aws.String("attribute_exists(#pk) AND #a > :zero"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAttemptsRemaining, "#pk": keyEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  &types.AttributeValueMemberN{Value: "1"},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if ccf, ok := isConditionFailed(err); ok {
			if len(ccf.Item) == 0 {
				return 0, notFound("otp")
			}
			return -1, nil
		}
		return 0, err
	}
	n, ok := out.Attributes[fieldAttemptsRemaining].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("update otp: %s missing from response", fieldAttemptsRemaining)
	}
	return strconv.Atoi(n.Value)
}

func (r *OTPRepo) Delete(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          otpKey(email, purpose),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	return len(out.Attributes) > 0, nil
}
