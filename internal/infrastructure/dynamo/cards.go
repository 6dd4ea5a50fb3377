package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cardvault-api/internal/domain"
)

// CardRepo provides typed DynamoDB operations for the cards table.
// PK: user_id, SK: last_four_digits — the composite key makes the last four
// digits unique per user, enforced by a conditional insert rather than a
// pre-insert existence check.
type CardRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCardRepo(client *dynamodb.Client, tableName string) *CardRepo {
	return &CardRepo{client: client, tableName: tableName}
}

// Create inserts the card, failing with domain.ErrConflict when the owner
// already has a card with the same last four digits.
func (r *CardRepo) Create(ctx context.Context, c *domain.Card) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(last_four_digits)"),
	})
	if isConditionalCheckFailed(err) {
		return fmt.Errorf("card with these last four digits already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *CardRepo) Get(ctx context.Context, userID, lastFour string) (*domain.Card, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("user_id", userID, "last_four_digits", lastFour),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("card not found: %w", domain.ErrNotFound)
	}
	var c domain.Card
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByUser returns all cards owned by userID.
func (r *CardRepo) ListByUser(ctx context.Context, userID string) ([]domain.Card, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	var cards []domain.Card
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *CardRepo) Update(ctx context.Context, userID, lastFour string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(withUpdatedAt(updates))
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("user_id", userID, "last_four_digits", lastFour),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// Delete removes the card and returns the stored record, or domain.ErrNotFound.
func (r *CardRepo) Delete(ctx context.Context, userID, lastFour string) (*domain.Card, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          compositeKey("user_id", userID, "last_four_digits", lastFour),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Attributes) == 0 {
		return nil, fmt.Errorf("card not found: %w", domain.ErrNotFound)
	}
	var c domain.Card
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteAllByUser removes every card owned by userID. Used by the explicit
// account-deletion cascade.
func (r *CardRepo) DeleteAllByUser(ctx context.Context, userID string) error {
	cards, err := r.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       compositeKey("user_id", userID, "last_four_digits", c.LastFourDigits),
		}); err != nil {
			return err
		}
	}
	return nil
}
