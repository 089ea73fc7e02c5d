package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/talentvote/internal/domain"
	apperrors "github.com/pscheid92/talentvote/internal/platform/errors"
)

// CardsResponse lists one card per contestant of the current feed snapshot.
type CardsResponse struct {
	Cards        []domain.Card        `json:"cards"`
	VotingWindow *domain.VotingWindow `json:"votingWindow"`
	IsLoading    bool                 `json:"isLoading"`
	Error        string               `json:"error,omitempty"`
}

func (s *Server) registerFeedRoutes() {
	s.echo.GET("/api/feed", s.handleGetFeed)
	s.echo.POST("/api/feed/refetch", s.handleRefetchFeed)
	s.echo.GET("/ws/feed", s.handleFeedWebSocket)
}

func (s *Server) registerVoteRoutes() {
	voteLimiter := newRateLimiter(limiterVote, s.config.VoteRateLimit, s.config.VoteRateBurst, s.observeRateLimited)
	cardsLimiter := newRateLimiter(limiterCards, s.config.ReadRateLimit, s.config.ReadRateBurst, s.observeRateLimited)

	s.echo.GET("/api/cards", s.handleGetCards, cardsLimiter, s.requireProfile)
	s.echo.GET("/api/contestants/:id/vote", s.handleGetCard, cardsLimiter, s.requireProfile)
	s.echo.POST("/api/contestants/:id/vote", s.handleSubmitVote, voteLimiter, s.requireProfile)
	s.echo.POST("/api/vote/reset", s.handleResetVote, s.requireProfile)
	s.echo.DELETE("/api/vote", s.handleClearVotes, s.requireProfile)
}

func (s *Server) handleGetFeed(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.feed.State()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRefetchFeed(c echo.Context) error {
	state := s.feed.Refetch(c.Request().Context())
	if err := c.JSON(http.StatusOK, state); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetCards(c echo.Context) error {
	ctx := c.Request().Context()
	profile := profileFrom(c)
	feed := s.feed.State()

	cards := make([]domain.Card, 0, len(feed.Contestants))
	for _, contestant := range feed.Contestants {
		state := s.voters.Peek(ctx, profile, contestant.ID)
		cards = append(cards, domain.BuildCard(contestant, state, feed.WindowOpen()))
	}

	response := CardsResponse{
		Cards:        cards,
		VotingWindow: feed.VotingWindow,
		IsLoading:    feed.IsLoading,
		Error:        feed.Error,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetCard(c echo.Context) error {
	feed := s.feed.State()
	contestant, err := findContestant(feed, c.Param("id"))
	if err != nil {
		return err
	}

	state := s.voters.Peek(c.Request().Context(), profileFrom(c), contestant.ID)
	card := domain.BuildCard(contestant, state, feed.WindowOpen())
	if err := c.JSON(http.StatusOK, card); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleSubmitVote answers with the card after the submission. Business failures (already voted,
// gateway rejection) are not HTTP errors; they ride in the card's state.error.
func (s *Server) handleSubmitVote(c echo.Context) error {
	ctx := c.Request().Context()
	feed := s.feed.State()

	contestant, err := findContestant(feed, c.Param("id"))
	if err != nil {
		return err
	}
	if !feed.WindowOpen() {
		return fmt.Errorf("vote for contestant %s: %w", contestant.ID, domain.ErrVotingClosed)
	}

	voter := s.voters.Voter(ctx, profileFrom(c), contestant.ID)
	state := voter.SubmitVote(ctx)
	if state.Error != "" {
		slog.InfoContext(ctx, "Vote not accepted", "contestant_id", contestant.ID, "reason", state.Error)
	}

	card := domain.BuildCard(contestant, state, feed.WindowOpen())
	if err := c.JSON(http.StatusOK, card); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleResetVote(c echo.Context) error {
	s.voters.ResetProfile(c.Request().Context(), profileFrom(c))
	if err := c.JSON(http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleClearVotes(c echo.Context) error {
	s.voters.ClearProfile(c.Request().Context(), profileFrom(c))
	if err := c.NoContent(http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}

func findContestant(feed domain.FeedState, id string) (domain.Contestant, error) {
	contestant, ok := domain.FindContestant(feed.Contestants, id)
	if !ok {
		return domain.Contestant{}, apperrors.NotFoundError(domain.ErrContestantNotFound.Error()).WithContext("contestant_id", id)
	}
	return contestant, nil
}
