package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/bandhan-app/bandhan-api/internal/domain"
)

// AccountRepo provides typed DynamoDB operations for the accounts table.
//
// Every state transition that guards on a pre-transition flag is expressed as a
// single conditional UpdateItem so concurrent callers cannot both pass the guard:
// the loser observes a ConditionalCheckFailedException, surfaced as domain.ErrConflict.
type AccountRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAccountRepo(client *dynamodb.Client, tableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName}
}

func (r *AccountRepo) Put(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(account_id)"),
	})
	return condFailed(err)
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("account_id", accountID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.queryGSI(ctx, "phone-index", "phone", phone)
}

func (r *AccountRepo) GetByCustomID(ctx context.Context, customID string) (*domain.Account, error) {
	return r.queryGSI(ctx, "custom_id-index", "custom_id", customID)
}

func (r *AccountRepo) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	expr, names, values, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("account_id", accountID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// MarkEmailVerified flips email_verified false->true. domain.ErrConflict means
// the flag was already set (including by a concurrent verification).
func (r *AccountRepo) MarkEmailVerified(ctx context.Context, accountID string) error {
	return r.flipFlag(ctx, accountID, "email_verified")
}

// MarkPhoneVerified flips phone_verified false->true, same contract as MarkEmailVerified.
func (r *AccountRepo) MarkPhoneVerified(ctx context.Context, accountID string) error {
	return r.flipFlag(ctx, accountID, "phone_verified")
}

func (r *AccountRepo) flipFlag(ctx context.Context, accountID, attr string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("account_id", accountID),
		UpdateExpression:    aws.String("SET #f = :t, updated_at = :u"),
		ConditionExpression: aws.String("#f = :f AND deleted = :f"),
		ExpressionAttributeNames: map[string]string{
			"#f": attr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
			":u": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

// MarkWelcomeSent flips welcome_sent false->true, but only once both channels are
// verified. At most one caller ever succeeds; everyone else gets domain.ErrConflict.
func (r *AccountRepo) MarkWelcomeSent(ctx context.Context, accountID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("account_id", accountID),
		UpdateExpression:    aws.String("SET welcome_sent = :t, updated_at = :u"),
		ConditionExpression: aws.String("welcome_sent = :f AND email_verified = :t AND phone_verified = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
			":u": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

// Deactivate transitions active->inactive. Condition guards against double
// deactivation and against touching a deleted account.
func (r *AccountRepo) Deactivate(ctx context.Context, accountID, reason string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("account_id", accountID),
		UpdateExpression:    aws.String("SET active = :f, deactivated_at = :at, deactivation_reason = :r, updated_at = :u"),
		ConditionExpression: aws.String("active = :t AND deleted = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":f":  &types.AttributeValueMemberBOOL{Value: false},
			":at": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
			":r":  &types.AttributeValueMemberS{Value: reason},
			":u":  &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

// Activate transitions inactive->active and clears the deactivation stamp.
func (r *AccountRepo) Activate(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("account_id", accountID),
		UpdateExpression:    aws.String("SET active = :t, updated_at = :u REMOVE deactivated_at, deactivation_reason"),
		ConditionExpression: aws.String("active = :f AND deleted = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
			":u": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

// SoftDelete marks the account deleted and suppresses its profile. Terminal:
// the deleted=false condition means a second delete loses, and nothing ever
// clears the flag.
func (r *AccountRepo) SoftDelete(ctx context.Context, accountID, reason string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("account_id", accountID),
		UpdateExpression: aws.String(
			"SET deleted = :t, active = :f, profile_visible = :f, deleted_at = :at, deletion_reason = :r, updated_at = :u"),
		ConditionExpression: aws.String("deleted = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":f":  &types.AttributeValueMemberBOOL{Value: false},
			":at": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
			":r":  &types.AttributeValueMemberS{Value: reason},
			":u":  &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

// AddBlocked adds targetID to the blocker's blocked set. The set ADD is
// idempotent on its own; the condition turns a duplicate into domain.ErrConflict
// so the caller can report "already blocked".
func (r *AccountRepo) AddBlocked(ctx context.Context, accountID, targetID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("account_id", accountID),
		UpdateExpression:    aws.String("ADD blocked :set SET updated_at = :u"),
		ConditionExpression: aws.String("attribute_not_exists(blocked) OR NOT contains(blocked, :id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":set": &types.AttributeValueMemberSS{Value: []string{targetID}},
			":id":  &types.AttributeValueMemberS{Value: targetID},
			":u":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

// RemoveBlocked removes targetID from the blocked set; domain.ErrConflict when
// the relation does not exist.
func (r *AccountRepo) RemoveBlocked(ctx context.Context, accountID, targetID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("account_id", accountID),
		UpdateExpression:    aws.String("DELETE blocked :set SET updated_at = :u"),
		ConditionExpression: aws.String("contains(blocked, :id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":set": &types.AttributeValueMemberSS{Value: []string{targetID}},
			":id":  &types.AttributeValueMemberS{Value: targetID},
			":u":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	return condFailed(err)
}

func (r *AccountRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account by %s: %w", attr, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}
