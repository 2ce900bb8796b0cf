package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"spark_server/models"
	"spark_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MatchSyncService computes the match change-set for a sync pull. Only
// matches without a first message are surfaced here; once a conversation
// exists the chat record supersedes the match.
type MatchSyncService struct {
	Dynamo ChangeQuerier
}

// FetchMatchChanges returns the created/updated/deleted sets for the
// user's chatless matches. Query errors are fatal for the whole sync; a
// partial match view is worse than a retry.
func (s *MatchSyncService) FetchMatchChanges(
	ctx context.Context,
	userID string,
	sinceDate *time.Time,
	forceUpdates bool,
	photoUpdates map[string]bool,
	localMatchIDs []string,
) (models.MatchChanges, error) {
	changes := models.NewMatchChanges()

	timeFilter := sinceDate
	if forceUpdates {
		timeFilter = nil
	}

	rows, err := s.fetchChatlessMatches(ctx, userID, timeFilter)
	if err != nil {
		return changes, fmt.Errorf("failed to fetch matches for %s: %w", userID, err)
	}

	// Photo-only changes fall outside the time window; union them in from
	// an unfiltered fetch so they are never missed.
	if timeFilter != nil && len(photoUpdates) > 0 {
		allRows, err := s.fetchChatlessMatches(ctx, userID, nil)
		if err != nil {
			return changes, fmt.Errorf("failed to fetch photo-update matches for %s: %w", userID, err)
		}
		seen := map[string]bool{}
		for _, row := range rows {
			seen[row.MatchID] = true
		}
		for _, row := range allRows {
			if !seen[row.MatchID] && photoUpdates[row.Counterpart(userID)] {
				rows = append(rows, row)
			}
		}
	}

	changes = classifyMatches(rows, userID, sinceDate, forceUpdates, photoUpdates, time.Now())

	// Tombstone local ids the server no longer knows at all.
	if sinceDate != nil && len(localMatchIDs) > 0 {
		missing, err := s.missingMatchIDs(ctx, localMatchIDs)
		if err != nil {
			return changes, fmt.Errorf("failed to check local match ids: %w", err)
		}
		changes.Deleted = appendUnique(changes.Deleted, missing)
	}

	log.Printf("🔄 Match sync for %s: %d created, %d updated, %d deleted",
		userID, len(changes.Created), len(changes.Updated), len(changes.Deleted))
	return changes, nil
}

// fetchChatlessMatches queries both participant GSIs for matches that do
// not yet have a chat with a first message. The first-message exclusion
// is part of the filter expression, not a post-filter.
func (s *MatchSyncService) fetchChatlessMatches(ctx context.Context, userID string, sinceDate *time.Time) ([]models.Match, error) {
	filter := "attribute_not_exists(firstMessageAt)"
	values := map[string]types.AttributeValue{
		":userId": &types.AttributeValueMemberS{Value: userID},
	}
	if sinceDate != nil {
		since := sinceDate.UTC().Format(time.RFC3339)
		values[":since"] = &types.AttributeValueMemberS{Value: since}
		filter += " AND (matchedAt > :since OR unmatchedAt > :since OR userAOpenedAt > :since OR userBOpenedAt > :since)"
	}

	var matches []models.Match
	for _, index := range []struct {
		name string
		attr string
	}{
		{models.MatchUserAIndex, "userA"},
		{models.MatchUserBIndex, "userB"},
	} {
		items, err := s.Dynamo.QueryItemsWithIndex(
			ctx,
			models.MatchesTable,
			index.name,
			index.attr+" = :userId",
			values,
			nil,
			filter,
			1000,
		)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			var match models.Match
			if err := attributevalue.UnmarshalMap(item, &match); err != nil {
				return nil, fmt.Errorf("failed to unmarshal match: %w", err)
			}
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// missingMatchIDs returns the subset of ids with no match record at all.
func (s *MatchSyncService) missingMatchIDs(ctx context.Context, ids []string) ([]string, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, map[string]types.AttributeValue{
			"matchId": &types.AttributeValueMemberS{Value: id},
		})
	}

	items, err := s.Dynamo.BatchGetItems(ctx, models.MatchesTable, keys)
	if err != nil {
		return nil, err
	}

	found := map[string]bool{}
	for _, item := range items {
		var match models.Match
		if err := attributevalue.UnmarshalMap(item, &match); err != nil {
			continue
		}
		found[match.MatchID] = true
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// classifyMatches sorts fetched rows into the change-set. Deletions only
// exist for clients with a cursor; a first sync has nothing to delete.
func classifyMatches(
	rows []models.Match,
	userID string,
	sinceDate *time.Time,
	forceUpdates bool,
	photoUpdates map[string]bool,
	now time.Time,
) models.MatchChanges {
	changes := models.NewMatchChanges()

	for _, row := range rows {
		if row.Status == models.MatchStatusUnmatched {
			if sinceDate != nil && !forceUpdates {
				changes.Deleted = appendUnique(changes.Deleted, []string{row.MatchID})
				continue
			}
			if sinceDate == nil {
				continue
			}
		}

		record := transformMatch(row, now)
		switch {
		case forceUpdates || photoUpdates[row.Counterpart(userID)]:
			changes.Updated = append(changes.Updated, record)
		case sinceDate == nil || utils.AfterCursor(row.MatchedAt, *sinceDate):
			changes.Created = append(changes.Created, record)
		default:
			changes.Updated = append(changes.Updated, record)
		}
	}

	return changes
}

func transformMatch(row models.Match, now time.Time) models.SyncMatch {
	syncedAt := utils.MaxEpochMs(row.MatchedAt, row.UnmatchedAt, row.UserAOpenedAt, row.UserBOpenedAt)
	if syncedAt == 0 {
		syncedAt = now.UnixMilli()
	}
	return models.SyncMatch{
		ID:            row.MatchID,
		UserA:         row.UserA,
		UserB:         row.UserB,
		Status:        row.Status,
		MatchedAt:     utils.ToEpochMs(row.MatchedAt),
		UnmatchedAt:   utils.ToEpochMs(row.UnmatchedAt),
		UserAOpenedAt: utils.ToEpochMs(row.UserAOpenedAt),
		UserBOpenedAt: utils.ToEpochMs(row.UserBOpenedAt),
		PlaceID:       row.PlaceID,
		PlaceName:     row.PlaceName,
		SyncedAt:      syncedAt,
	}
}

// appendUnique appends ids not already present in the list.
func appendUnique(existing []string, ids []string) []string {
	seen := map[string]bool{}
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			existing = append(existing, id)
		}
	}
	return existing
}
