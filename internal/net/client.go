package net

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
)

// Client is a single connection to an exchange server.
type Client struct {
	conn      net.Conn
	reader    *bufio.Reader
	writeLock sync.Mutex
}

func Dial(ctx context.Context, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", address, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, MAX_FRAME_SIZE),
	}, nil
}

func (c *Client) Send(message NetworkMessage) error {
	frame, err := message.Encode()
	if err != nil {
		return err
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	return nil
}

// Receive blocks until the next frame arrives.
func (c *Client) Receive() (NetworkMessage, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return NetworkMessage{}, err
	}
	return DecodeNetworkMessage(line)
}

func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

func (c *Client) Close() error {
	return c.conn.Close()
}
