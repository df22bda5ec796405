package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/infrastructure/persistence"
	pkgerrors "reqgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoDBAPI is the subset of the DynamoDB client the stores use
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

const (
	entityNode  = "NODE"
	entityEdge  = "EDGE"
	entityGuard = "GUARD"

	nodeSK = "NODE"
)

// nodeItem represents the DynamoDB item structure for a node
type nodeItem struct {
	PK         string         `dynamodbav:"PK"`     // NODE#<id>
	SK         string         `dynamodbav:"SK"`     // NODE
	GSI1PK     string         `dynamodbav:"GSI1PK"` // PROJECT#<projectID>
	GSI1SK     string         `dynamodbav:"GSI1SK"` // NODE#<id>
	EntityType string         `dynamodbav:"EntityType"`
	NodeID     string         `dynamodbav:"NodeID"`
	ProjectID  string         `dynamodbav:"ProjectID"`
	Category   string         `dynamodbav:"Category"`
	ParentID   string         `dynamodbav:"ParentID,omitempty"`
	Title      string         `dynamodbav:"Title"`
	X          float64        `dynamodbav:"X"`
	Y          float64        `dynamodbav:"Y"`
	Status     string         `dynamodbav:"Status"`
	Metadata   map[string]any `dynamodbav:"Metadata"`
	UniqueKey  string         `dynamodbav:"UniqueKey"`
	CreatedAt  string         `dynamodbav:"CreatedAt"`
	UpdatedAt  string         `dynamodbav:"UpdatedAt"`
	Version    int            `dynamodbav:"Version"`
}

// guardItem claims a uniqueness slot inside a project partition
type guardItem struct {
	PK         string `dynamodbav:"PK"` // PROJECT#<projectID>
	SK         string `dynamodbav:"SK"` // UNIQUE#...
	EntityType string `dynamodbav:"EntityType"`
	NodeID     string `dynamodbav:"NodeID"`
}

// edgeItem lives in the project partition keyed by (source, target, type)
type edgeItem struct {
	PK           string `dynamodbav:"PK"` // PROJECT#<projectID>
	SK           string `dynamodbav:"SK"` // EDGE#<source>#<target>#<type>
	EntityType   string `dynamodbav:"EntityType"`
	EdgeID       string `dynamodbav:"EdgeID"`
	ProjectID    string `dynamodbav:"ProjectID"`
	SourceID     string `dynamodbav:"SourceID"`
	TargetID     string `dynamodbav:"TargetID"`
	SourceHandle string `dynamodbav:"SourceHandle"`
	TargetHandle string `dynamodbav:"TargetHandle"`
	EdgeType     string `dynamodbav:"EdgeType"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
}

// GraphStore implements ports.GraphStore on a single DynamoDB table. Node
// creation is one transaction writing the node and its uniqueness guard, so
// two writers cannot both create the same singleton.
type GraphStore struct {
	client    DynamoDBAPI
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewGraphStore creates a new DynamoDB graph store
func NewGraphStore(client DynamoDBAPI, tableName, indexName string, logger *zap.Logger) *GraphStore {
	return &GraphStore{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

func projectPK(projectID string) string    { return "PROJECT#" + projectID }
func nodePK(id valueobjects.NodeID) string { return "NODE#" + id.String() }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// GetAnchorNode resolves the root guard of the project
func (s *GraphStore) GetAnchorNode(ctx context.Context, projectID string) (*entities.Node, error) {
	node, err := s.nodeByGuard(ctx, projectID, persistence.UniquenessKey(categories.Root, ""))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("root of project %s: %w", projectID, pkgerrors.ErrNodeNotFound)
	}
	return node, nil
}

// FindNodeByCategory returns the node of a singleton category through its
// guard, falling back to an index scan for other categories.
func (s *GraphStore) FindNodeByCategory(ctx context.Context, projectID string, category categories.Category) (*entities.Node, error) {
	if desc, err := categories.Classify(category); err == nil && desc.IsSingleton() {
		return s.nodeByGuard(ctx, projectID, persistence.UniquenessKey(category, ""))
	}

	nodes, err := s.queryNodes(ctx, projectID, expression.Name("Category").Equal(expression.Value(string(category))))
	if err != nil {
		return nil, err
	}
	var oldest *entities.Node
	for _, n := range nodes {
		if oldest == nil || n.CreatedAt().Before(oldest.CreatedAt()) {
			oldest = n
		}
	}
	return oldest, nil
}

// FindNodeByCategoryAndTitle returns the node holding the (category, title) slot
func (s *GraphStore) FindNodeByCategoryAndTitle(ctx context.Context, projectID string, category categories.Category, title string) (*entities.Node, error) {
	node, err := s.nodeByGuard(ctx, projectID, persistence.UniquenessKey(category, title))
	if err != nil || node == nil {
		return node, err
	}
	if node.Title() != title {
		return nil, nil
	}
	return node, nil
}

func (s *GraphStore) nodeByGuard(ctx context.Context, projectID, uniqueKey string) (*entities.Node, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(projectPK(projectID), uniqueKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get guard %s: %w", uniqueKey, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var guard guardItem
	if err := attributevalue.UnmarshalMap(result.Item, &guard); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guard: %w", err)
	}
	nodeID, err := valueobjects.NewNodeIDFromString(guard.NodeID)
	if err != nil {
		return nil, fmt.Errorf("guard %s holds invalid node id: %w", uniqueKey, err)
	}

	node, err := s.GetNode(ctx, nodeID)
	if errors.Is(err, pkgerrors.ErrNodeNotFound) {
		s.logger.Warn("Uniqueness guard points at a missing node",
			zap.String("projectID", projectID),
			zap.String("guard", uniqueKey),
			zap.String("nodeID", guard.NodeID),
		)
		return nil, nil
	}
	return node, err
}

// GetNode retrieves a node by ID
func (s *GraphStore) GetNode(ctx context.Context, nodeID valueobjects.NodeID) (*entities.Node, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(nodePK(nodeID), nodeSK),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNodeNotFound)
	}
	return s.parseNode(result.Item)
}

// CountChildren counts the project's nodes whose ParentID is parentID
func (s *GraphStore) CountChildren(ctx context.Context, projectID string, parentID valueobjects.NodeID) (int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("GSI1SK").BeginsWith("NODE#"))
	filter := expression.Name("ParentID").Equal(expression.Value(parentID.String()))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	}

	total := 0
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("failed to count children: %w", err)
		}
		total += int(result.Count)
		if len(result.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// CreateNode writes the node and its uniqueness guard in one transaction
func (s *GraphStore) CreateNode(ctx context.Context, node *entities.Node) error {
	item, err := s.toNodeItem(node)
	if err != nil {
		return err
	}
	nodeAV, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}
	guardAV, err := attributevalue.MarshalMap(guardItem{
		PK:         projectPK(node.ProjectID()),
		SK:         item.UniqueKey,
		EntityType: entityGuard,
		NodeID:     node.ID().String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal guard: %w", err)
	}

	notExists := aws.String("attribute_not_exists(PK)")
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: guardAV, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: nodeAV, ConditionExpression: notExists}},
		},
	})
	if err != nil {
		if isConditionalCancel(err) {
			return fmt.Errorf("%s in project %s: %w", item.UniqueKey, node.ProjectID(), pkgerrors.ErrNodeConflict)
		}
		s.logger.Error("Failed to save node to DynamoDB",
			zap.String("nodeID", node.ID().String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save node: %w", err)
	}

	s.logger.Debug("Saved node",
		zap.String("nodeID", node.ID().String()),
		zap.String("projectID", node.ProjectID()),
		zap.String("guard", item.UniqueKey),
	)
	return nil
}

// UpdateNodeMetadata overwrites the metadata document. The condition on
// Category keeps a stale caller from writing the wrong schema.
func (s *GraphStore) UpdateNodeMetadata(ctx context.Context, nodeID valueobjects.NodeID, metadata categories.Metadata) error {
	doc, err := categories.EncodeMetadata(metadata)
	if err != nil {
		return err
	}

	update := expression.Set(expression.Name("Metadata"), expression.Value(doc)).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339Nano))).
		Add(expression.Name("Version"), expression.Value(1))
	cond := expression.Name("PK").AttributeExists().
		And(expression.Name("Category").Equal(expression.Value(string(metadata.Category()))))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key(nodePK(nodeID), nodeSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s node %s: %w", metadata.Category(), nodeID, pkgerrors.ErrNodeNotFound)
		}
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

// CreateEdge writes the edge unless its key already exists
func (s *GraphStore) CreateEdge(ctx context.Context, edge *entities.Edge) error {
	av, err := attributevalue.MarshalMap(edgeItem{
		PK:           projectPK(edge.ProjectID),
		SK:           persistence.EdgeKey(edge),
		EntityType:   entityEdge,
		EdgeID:       edge.ID.String(),
		ProjectID:    edge.ProjectID,
		SourceID:     edge.SourceID.String(),
		TargetID:     edge.TargetID.String(),
		SourceHandle: edge.SourceHandle.String(),
		TargetHandle: edge.TargetHandle.String(),
		EdgeType:     string(edge.Type),
		CreatedAt:    edge.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &pkgerrors.EdgeConflictError{
				SourceID: edge.SourceID.String(),
				TargetID: edge.TargetID.String(),
				EdgeType: string(edge.Type),
			}
		}
		return fmt.Errorf("failed to save edge: %w", err)
	}

	s.logger.Debug("Saved edge",
		zap.String("edgeID", edge.ID.String()),
		zap.String("sourceID", edge.SourceID.String()),
		zap.String("targetID", edge.TargetID.String()),
	)
	return nil
}

// DeleteNode removes the node with its guard, then its incident edges. Edge
// cleanup is best effort.
func (s *GraphStore) DeleteNode(ctx context.Context, nodeID valueobjects.NodeID) error {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}

	guardCond, err := expression.NewBuilder().
		WithCondition(expression.Name("NodeID").Equal(expression.Value(nodeID.String()))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(s.tableName),
				Key:       key(nodePK(nodeID), nodeSK),
			}},
			{Delete: &types.Delete{
				TableName:                 aws.String(s.tableName),
				Key:                       key(projectPK(node.ProjectID()), persistence.NodeUniquenessKey(node)),
				ConditionExpression:       guardCond.Condition(),
				ExpressionAttributeNames:  guardCond.Names(),
				ExpressionAttributeValues: guardCond.Values(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	edges, err := s.ListEdges(ctx, node.ProjectID())
	if err != nil {
		s.logger.Warn("Failed to list edges for cleanup", zap.String("nodeID", nodeID.String()), zap.Error(err))
		return nil
	}
	for _, e := range edges {
		if !e.SourceID.Equals(nodeID) && !e.TargetID.Equals(nodeID) {
			continue
		}
		if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       key(projectPK(e.ProjectID), persistence.EdgeKey(e)),
		}); err != nil {
			s.logger.Warn("Failed to delete incident edge",
				zap.String("nodeID", nodeID.String()),
				zap.String("edgeID", e.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// ListNodes returns every node of the project
func (s *GraphStore) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	return s.queryNodes(ctx, projectID, expression.ConditionBuilder{})
}

func (s *GraphStore) queryNodes(ctx context.Context, projectID string, filter expression.ConditionBuilder) ([]*entities.Node, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("GSI1SK").BeginsWith("NODE#"))

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter.IsSet() {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
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

	var nodes []*entities.Node
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query nodes: %w", err)
		}
		for _, item := range result.Items {
			node, err := s.parseNode(item)
			if err != nil {
				s.logger.Warn("Failed to parse node item", zap.Error(err))
				continue
			}
			nodes = append(nodes, node)
		}
		if len(result.LastEvaluatedKey) == 0 {
			return nodes, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// ListEdges returns every edge of the project
func (s *GraphStore) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("SK").BeginsWith("EDGE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var edges []*entities.Edge
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query edges: %w", err)
		}
		for _, item := range result.Items {
			edge, err := parseEdge(item)
			if err != nil {
				s.logger.Warn("Failed to parse edge item", zap.Error(err))
				continue
			}
			edges = append(edges, edge)
		}
		if len(result.LastEvaluatedKey) == 0 {
			return edges, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

func (s *GraphStore) toNodeItem(node *entities.Node) (nodeItem, error) {
	doc, err := categories.EncodeMetadata(node.Metadata())
	if err != nil {
		return nodeItem{}, err
	}
	item := nodeItem{
		PK:         nodePK(node.ID()),
		SK:         nodeSK,
		GSI1PK:     projectPK(node.ProjectID()),
		GSI1SK:     "NODE#" + node.ID().String(),
		EntityType: entityNode,
		NodeID:     node.ID().String(),
		ProjectID:  node.ProjectID(),
		Category:   string(node.Category()),
		Title:      node.Title(),
		X:          node.Position().X,
		Y:          node.Position().Y,
		Status:     string(node.Status()),
		Metadata:   doc,
		UniqueKey:  persistence.NodeUniquenessKey(node),
		CreatedAt:  node.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:  node.UpdatedAt().UTC().Format(time.RFC3339Nano),
		Version:    node.Version(),
	}
	if !node.IsRoot() {
		item.ParentID = node.ParentID().String()
	}
	return item, nil
}

func (s *GraphStore) parseNode(av map[string]types.AttributeValue) (*entities.Node, error) {
	var item nodeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}

	id, err := valueobjects.NewNodeIDFromString(item.NodeID)
	if err != nil {
		return nil, err
	}
	var parentID valueobjects.NodeID
	if item.ParentID != "" {
		if parentID, err = valueobjects.NewNodeIDFromString(item.ParentID); err != nil {
			return nil, err
		}
	}

	category := categories.Category(item.Category)
	metadata, err := categories.DecodeMetadata(category, item.Metadata)
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)

	return entities.ReconstructNode(
		id,
		item.ProjectID,
		category,
		parentID,
		item.Title,
		valueobjects.Position{X: item.X, Y: item.Y},
		entities.NodeStatus(item.Status),
		metadata,
		createdAt,
		updatedAt,
		item.Version,
	), nil
}

func parseEdge(av map[string]types.AttributeValue) (*entities.Edge, error) {
	var item edgeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edge: %w", err)
	}
	sourceID, err := valueobjects.NewNodeIDFromString(item.SourceID)
	if err != nil {
		return nil, err
	}
	targetID, err := valueobjects.NewNodeIDFromString(item.TargetID)
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)

	return &entities.Edge{
		ID:           valueobjects.EdgeID(item.EdgeID),
		ProjectID:    item.ProjectID,
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceHandle: valueobjects.Handle(item.SourceHandle),
		TargetHandle: valueobjects.Handle(item.TargetHandle),
		Type:         entities.EdgeType(item.EdgeType),
		CreatedAt:    createdAt,
	}, nil
}

// isConditionalCancel reports a transaction cancelled by a failed condition
func isConditionalCancel(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
