package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"spark_server/models"
	"spark_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// MatchService owns the match write path. Mutual-interest resolution
// happens in the discovery service; it calls CreateMatch once both sides
// have liked.
type MatchService struct {
	Dynamo *DynamoService
}

// CreateMatch stores a new active match between two users at a place.
func (s *MatchService) CreateMatch(ctx context.Context, userID, targetUserID, placeID, placeName string) (*models.Match, error) {
	if targetUserID == "" || targetUserID == userID {
		return nil, errors.New("invalid target user")
	}

	match := models.Match{
		MatchID:   uuid.NewString(),
		UserA:     userID,
		UserB:     targetUserID,
		Status:    models.MatchStatusActive,
		MatchedAt: utils.NowRFC3339(),
		PlaceID:   placeID,
		PlaceName: placeName,
	}

	if err := s.Dynamo.PutItem(ctx, models.MatchesTable, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	log.Printf("💘 Match %s created between %s and %s", match.MatchID, userID, targetUserID)
	return &match, nil
}

// MarkOpened stamps the caller's opened-at timestamp on the match.
func (s *MatchService) MarkOpened(ctx context.Context, userID, matchID string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasParticipant(userID) {
		return ErrNotParticipant
	}

	attr := "userAOpenedAt"
	if match.UserB == userID {
		attr = "userBOpenedAt"
	}

	_, err = s.Dynamo.UpdateItem(
		ctx,
		models.MatchesTable,
		fmt.Sprintf("SET %s = :now", attr),
		map[string]types.AttributeValue{
			"matchId": &types.AttributeValueMemberS{Value: matchID},
		},
		map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: utils.NowRFC3339()},
		},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to mark match %s opened: %w", matchID, err)
	}
	return nil
}

// Unmatch flips an active match to unmatched. Idempotent: unmatching an
// already-unmatched match is a no-op, the transition happens at most
// once. The chat tombstone cascades from this on the next sync.
func (s *MatchService) Unmatch(ctx context.Context, userID, matchID string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasParticipant(userID) {
		return ErrNotParticipant
	}
	if match.Status == models.MatchStatusUnmatched {
		return nil
	}

	_, err = s.Dynamo.UpdateItem(
		ctx,
		models.MatchesTable,
		"SET #status = :unmatched, unmatchedAt = :now",
		map[string]types.AttributeValue{
			"matchId": &types.AttributeValueMemberS{Value: matchID},
		},
		map[string]types.AttributeValue{
			":unmatched": &types.AttributeValueMemberS{Value: models.MatchStatusUnmatched},
			":now":       &types.AttributeValueMemberS{Value: utils.NowRFC3339()},
		},
		map[string]string{"#status": "status"},
	)
	if err != nil {
		return fmt.Errorf("failed to unmatch %s: %w", matchID, err)
	}

	log.Printf("💔 Match %s unmatched by %s", matchID, userID)
	return nil
}

func (s *MatchService) getMatch(ctx context.Context, matchID string) (*models.Match, error) {
	item, err := s.Dynamo.GetItem(ctx, models.MatchesTable, map[string]types.AttributeValue{
		"matchId": &types.AttributeValueMemberS{Value: matchID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	var match models.Match
	if err := attributevalue.UnmarshalMap(item, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	return &match, nil
}
