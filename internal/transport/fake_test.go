package transport

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// fakePeer implements peerConn in memory. Tests fire its callbacks directly.
type fakePeer struct {
	mu sync.Mutex

	onCandidate   func(*webrtc.ICECandidate)
	onPeerState   func(webrtc.PeerConnectionState)
	onDataChannel func(dataChannel)

	calls    []string
	channels []*fakeChannel
	local    *webrtc.SessionDescription
	remotes  []webrtc.SessionDescription
	added    []webrtc.ICECandidateInit
	closed   bool

	// candidates whose text equals rejectCandidate fail to apply.
	rejectCandidate string
	// failRemote makes SetRemoteDescription fail.
	failRemote bool
	// failOffer makes the next CreateOffer fail.
	failOffer bool
}

var _ peerConn = (*fakePeer)(nil)

func (p *fakePeer) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *fakePeer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = fn
}

func (p *fakePeer) OnICEConnectionStateChange(func(webrtc.ICEConnectionState)) {}

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPeerState = fn
}

func (p *fakePeer) OnDataChannel(fn func(dataChannel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDataChannel = fn
}

func (p *fakePeer) CreateDataChannel(label string, init *webrtc.DataChannelInit) (dataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("createDataChannel:" + label)
	if init == nil || init.Ordered == nil || !*init.Ordered {
		return nil, errors.New("channel must be ordered")
	}
	dc := &fakeChannel{}
	p.channels = append(p.channels, dc)
	return dc, nil
}

func (p *fakePeer) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("createOffer")
	if p.failOffer {
		p.failOffer = false
		return webrtc.SessionDescription{}, errors.New("offer failed")
	}
	if len(p.channels) == 0 {
		return webrtc.SessionDescription{}, errors.New("offer without channel")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (p *fakePeer) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("createAnswer")
	if len(p.remotes) == 0 {
		return webrtc.SessionDescription{}, errors.New("answer without remote offer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (p *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("setLocalDescription")
	p.local = &desc
	return nil
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("setRemoteDescription")
	if p.failRemote {
		return errors.New("remote rejected")
	}
	p.remotes = append(p.remotes, desc)
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.Candidate == p.rejectCandidate {
		return errors.New("unparseable candidate")
	}
	p.added = append(p.added, c)
	return nil
}

func (p *fakePeer) LocalDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) gather(c *webrtc.ICECandidate) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	fn(c)
}

func (p *fakePeer) setPeerState(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onPeerState
	p.mu.Unlock()
	fn(state)
}

func (p *fakePeer) announceChannel(dc *fakeChannel) {
	p.mu.Lock()
	fn := p.onDataChannel
	p.mu.Unlock()
	fn(dc)
}

func (p *fakePeer) snapshot() (calls []string, remotes []webrtc.SessionDescription, added []webrtc.ICECandidateInit, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...),
		append([]webrtc.SessionDescription(nil), p.remotes...),
		append([]webrtc.ICECandidateInit(nil), p.added...),
		p.closed
}

func (p *fakePeer) channel(i int) *fakeChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[i]
}

// fakeChannel implements dataChannel in memory.
type fakeChannel struct {
	mu        sync.Mutex
	onOpen    func()
	onClose   func()
	onMessage func(webrtc.DataChannelMessage)
	sent      [][]byte
	closed    bool
}

var _ dataChannel = (*fakeChannel)(nil)

func (c *fakeChannel) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

func (c *fakeChannel) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *fakeChannel) OnMessage(fn func(webrtc.DataChannelMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) open() {
	c.mu.Lock()
	fn := c.onOpen
	c.mu.Unlock()
	fn()
}

func (c *fakeChannel) close() {
	c.mu.Lock()
	fn := c.onClose
	c.mu.Unlock()
	fn()
}

func (c *fakeChannel) deliver(data []byte) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	fn(webrtc.DataChannelMessage{IsString: true, Data: data})
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) sentMessages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// peerSequence hands out the given fake peers, one per Initialize.
func peerSequence(peers ...*fakePeer) peerFactory {
	var mu sync.Mutex
	return func() (peerConn, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(peers) == 0 {
			return nil, errors.New("no more fake peers")
		}
		p := peers[0]
		peers = peers[1:]
		return p, nil
	}
}

func hostCandidate(ip string, port uint16) *webrtc.ICECandidate {
	return &webrtc.ICECandidate{
		Foundation: "1",
		Priority:   2130706431,
		Address:    ip,
		Protocol:   webrtc.ICEProtocolUDP,
		Port:       port,
		Typ:        webrtc.ICECandidateTypeHost,
		Component:  1,
	}
}
