package queryrecord

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, clientID string) (*Record, error)
}

type Repo struct {
	client *dynamodb.Client

	tableName *string
}

func NewRepository(client *dynamodb.Client, tableName string) *Repo {
	return &Repo{
		client:    client,
		tableName: aws.String(tableName),
	}
}

func (r *Repo) Create(ctx context.Context, rec *Record) error {
	marshaled, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshal failed")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.tableName,
		Item:      marshaled,
	})
	if err != nil {
		return errors.Wrap(err, "put failed")
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, clientID string) (*Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.tableName,
		Key: map[string]types.AttributeValue{
			"ClientId": &types.AttributeValueMemberS{Value: clientID},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get failed")
	}

	rec := new(Record)

	err = attributevalue.UnmarshalMap(out.Item, rec)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal failed")
	}

	if rec.ClientID == "" {
		return nil, ErrNotFound
	}

	return rec, nil
}
