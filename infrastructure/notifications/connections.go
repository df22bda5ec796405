package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ConnectionsAPI is the part of the DynamoDB client the connection store needs
type ConnectionsAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Connection is an open WebSocket subscribed to one project
type Connection struct {
	ConnectionID string    `dynamodbav:"ConnectionID"`
	ProjectID    string    `dynamodbav:"ProjectID"`
	Endpoint     string    `dynamodbav:"Endpoint"`
	ConnectedAt  time.Time `dynamodbav:"ConnectedAt"`
}

type connectionItem struct {
	PK     string `dynamodbav:"PK"`     // CONNECTION#<id>
	SK     string `dynamodbav:"SK"`     // METADATA
	GSI1PK string `dynamodbav:"GSI1PK"` // PROJECT#<projectID>
	GSI1SK string `dynamodbav:"GSI1SK"` // CONNECTION#<id>
	TTL    int64  `dynamodbav:"TTL"`
	Connection
}

// ConnectionStore tracks WebSocket connections per project in DynamoDB
type ConnectionStore struct {
	client    ConnectionsAPI
	tableName string
	indexName string
	ttl       time.Duration
}

// NewConnectionStore creates a new connection store
func NewConnectionStore(client ConnectionsAPI, tableName, indexName string) *ConnectionStore {
	return &ConnectionStore{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		ttl:       24 * time.Hour,
	}
}

func connectionKey(connectionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CONNECTION#" + connectionID},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// Save stores a connection; records expire after a day
func (s *ConnectionStore) Save(ctx context.Context, conn Connection) error {
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:         "CONNECTION#" + conn.ConnectionID,
		SK:         "METADATA",
		GSI1PK:     "PROJECT#" + conn.ProjectID,
		GSI1SK:     "CONNECTION#" + conn.ConnectionID,
		TTL:        conn.ConnectedAt.Add(s.ttl).Unix(),
		Connection: conn,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to store connection: %w", err)
	}
	return nil
}

// Delete forgets a connection
func (s *ConnectionStore) Delete(ctx context.Context, connectionID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       connectionKey(connectionID),
	}); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}

// ForProject lists the live connections of a project
func (s *ConnectionStore) ForProject(ctx context.Context, projectID string) ([]Connection, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("PROJECT#" + projectID))
	filter := expression.Name("TTL").GreaterThan(expression.Value(time.Now().Unix()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var conns []Connection
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query connections: %w", err)
		}
		for _, item := range result.Items {
			var rec connectionItem
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				continue
			}
			conns = append(conns, rec.Connection)
		}
		if len(result.LastEvaluatedKey) == 0 {
			return conns, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}
