package services

import (
	"context"
	"log"
	"time"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// A detector failure must never block the rest of a sync, so every error
// path here degrades to an empty set. The counterpart cap bounds the
// per-user photo queries on accounts with very large match lists; the
// media-refresh pass covers anyone past the cap within its threshold.
const maxPhotoCheckCounterparts = 500

type PhotoService struct {
	Dynamo ChangeQuerier
}

// DetectPhotoUpdates returns the counterpart user ids whose photo set
// changed after sinceDate, among the user's active matches.
func (ps *PhotoService) DetectPhotoUpdates(ctx context.Context, userID string, sinceDate time.Time) map[string]bool {
	updated := map[string]bool{}

	matches, err := ps.fetchActiveMatches(ctx, userID)
	if err != nil {
		log.Printf("⚠️ Photo detector: failed to fetch matches for %s: %v", userID, err)
		return updated
	}
	if len(matches) == 0 {
		return updated
	}

	counterparts := distinctCounterparts(matches, userID, maxPhotoCheckCounterparts)
	since := sinceDate.UTC().Format(time.RFC3339)

	for _, counterpart := range counterparts {
		items, err := ps.Dynamo.QueryItemsWithIndex(
			ctx,
			models.UserPhotosTable,
			models.PhotoUserIndex,
			"userId = :userId AND createdAt > :since",
			map[string]types.AttributeValue{
				":userId": &types.AttributeValueMemberS{Value: counterpart},
				":since":  &types.AttributeValueMemberS{Value: since},
			},
			nil,
			"",
			1,
		)
		if err != nil {
			log.Printf("⚠️ Photo detector: failed to check photos for %s: %v", counterpart, err)
			continue
		}
		if len(items) > 0 {
			updated[counterpart] = true
		}
	}

	if len(updated) > 0 {
		log.Printf("🖼️ Photo detector: %d counterpart(s) with photo updates for %s", len(updated), userID)
	}
	return updated
}

func (ps *PhotoService) fetchActiveMatches(ctx context.Context, userID string) ([]models.Match, error) {
	var matches []models.Match

	for _, index := range []struct {
		name string
		attr string
	}{
		{models.MatchUserAIndex, "userA"},
		{models.MatchUserBIndex, "userB"},
	} {
		items, err := ps.Dynamo.QueryItemsWithIndex(
			ctx,
			models.MatchesTable,
			index.name,
			index.attr+" = :userId",
			map[string]types.AttributeValue{
				":userId": &types.AttributeValueMemberS{Value: userID},
				":active": &types.AttributeValueMemberS{Value: models.MatchStatusActive},
			},
			map[string]string{"#status": "status"},
			"#status = :active",
			1000,
		)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			var match models.Match
			if err := attributevalue.UnmarshalMap(item, &match); err != nil {
				log.Printf("⚠️ Photo detector: failed to unmarshal match: %v", err)
				continue
			}
			matches = append(matches, match)
		}
	}

	return matches, nil
}

// distinctCounterparts derives the other-user ids from a match list, in
// order of first appearance, capped at limit.
func distinctCounterparts(matches []models.Match, userID string, limit int) []string {
	seen := map[string]bool{}
	var counterparts []string
	for _, match := range matches {
		counterpart := match.Counterpart(userID)
		if counterpart == "" || counterpart == userID || seen[counterpart] {
			continue
		}
		seen[counterpart] = true
		counterparts = append(counterparts, counterpart)
		if len(counterparts) >= limit {
			break
		}
	}
	return counterparts
}
