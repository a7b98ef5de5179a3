package rpc

import (
	"context"
	"errors"
	"net/rpc"
	"time"

	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/persistence"
	"github.com/wfunc/rpsarena/services"
)

// LeaderboardName is the net/rpc service name.
const LeaderboardName = "Leaderboard"

const callTimeout = 5 * time.Second

// ErrNotFound crosses the wire as a plain string; Client maps it back.
var ErrNotFound = errors.New("player not found")

// LeaderboardService exposes leaderboard reads over net/rpc.
type LeaderboardService struct {
	leaderboard *services.LeaderboardService
}

func NewLeaderboardService(ls *services.LeaderboardService) *LeaderboardService {
	return &LeaderboardService{leaderboard: ls}
}

type TopArgs struct {
	Limit int
}

type TopReply struct {
	Entries []models.LeaderboardEntry
}

type RecentArgs struct {
	Limit int
}

type RecentReply struct {
	Records []models.GameRecord
}

type PlayerArgs struct {
	UserID string
}

type PlayerReply struct {
	Entry models.LeaderboardEntry
}

// Top returns the leaderboard head; Limit is clamped like the HTTP route.
func (s *LeaderboardService) Top(args *TopArgs, reply *TopReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	entries, err := s.leaderboard.Top(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}

// Recent returns the latest resolved rounds, newest first.
func (s *LeaderboardService) Recent(args *RecentArgs, reply *RecentReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	records, err := s.leaderboard.Recent(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}

func (s *LeaderboardService) Player(args *PlayerArgs, reply *PlayerReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	entry, err := s.leaderboard.Player(ctx, args.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	reply.Entry = entry
	return nil
}

// Client is a typed wrapper over an *rpc.Client.
type Client struct {
	rpc *rpc.Client
}

func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: c}, nil
}

func (c *Client) Top(limit int) ([]models.LeaderboardEntry, error) {
	var reply TopReply
	if err := c.rpc.Call(LeaderboardName+".Top", &TopArgs{Limit: limit}, &reply); err != nil {
		return nil, err
	}
	return reply.Entries, nil
}

func (c *Client) Recent(limit int) ([]models.GameRecord, error) {
	var reply RecentReply
	if err := c.rpc.Call(LeaderboardName+".Recent", &RecentArgs{Limit: limit}, &reply); err != nil {
		return nil, err
	}
	return reply.Records, nil
}

func (c *Client) Player(userID string) (models.LeaderboardEntry, error) {
	var reply PlayerReply
	if err := c.rpc.Call(LeaderboardName+".Player", &PlayerArgs{UserID: userID}, &reply); err != nil {
		if err.Error() == ErrNotFound.Error() {
			return models.LeaderboardEntry{}, ErrNotFound
		}
		return models.LeaderboardEntry{}, err
	}
	return reply.Entry, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
